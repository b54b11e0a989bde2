package openmath

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

type stsFile struct {
	Signatures   []stsSignature `xml:"Signature"`
	CDSignatures []stsSignature `xml:"CDSignature"`
}

type stsSignature struct {
	Name   string  `xml:"name,attr"`
	Object *omNode `xml:"OMOBJ"`
}

// omNode is a generic OpenMath object tree node. The ",any" catch-all
// keeps child order, which the rendering below depends on.
type omNode struct {
	XMLName  xml.Name
	Name     string   `xml:"name,attr"`
	Children []omNode `xml:",any"`
}

// ParseSTS parses a Small Type System file into a map from symbol name to
// a human-readable signature string such as "R, R -> R".
func ParseSTS(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("openmath: open sts: %w", err)
	}

	var doc stsFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("openmath: parse sts %q: %w", path, err)
	}

	sigs := doc.Signatures
	if len(sigs) == 0 {
		sigs = doc.CDSignatures
	}

	out := make(map[string]string, len(sigs))
	for _, sig := range sigs {
		name := strings.TrimSpace(sig.Name)
		if name == "" || sig.Object == nil {
			continue
		}
		if rendered := renderOM(*sig.Object); rendered != "" {
			out[name] = rendered
		}
	}
	return out, nil
}

// renderOM converts an OpenMath object tree to a readable string. The
// "mapsto" application renders as a function arrow; multiple inputs are
// parenthesized.
func renderOM(node omNode) string {
	switch node.XMLName.Local {
	case "OMS", "OMV":
		if node.Name == "" {
			return "?"
		}
		return node.Name
	case "OMA":
		if len(node.Children) == 0 {
			return ""
		}
		op := renderOM(node.Children[0])
		args := make([]string, 0, len(node.Children)-1)
		for _, c := range node.Children[1:] {
			args = append(args, renderOM(c))
		}

		if op == "mapsto" {
			switch {
			case len(args) >= 2:
				inputs := strings.Join(args[:len(args)-1], ", ")
				output := args[len(args)-1]
				if len(args) > 2 {
					return fmt.Sprintf("(%s) -> %s", inputs, output)
				}
				return fmt.Sprintf("%s -> %s", inputs, output)
			case len(args) == 1:
				return fmt.Sprintf("-> %s", args[0])
			}
		}
		return fmt.Sprintf("%s(%s)", op, strings.Join(args, ", "))
	case "OMOBJ":
		if len(node.Children) > 0 {
			return renderOM(node.Children[0])
		}
	}
	return ""
}
