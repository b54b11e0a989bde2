package openmath

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Struct tags use unqualified element names so both namespaced and bare
// OpenMath XML decode the same way.
type ocdFile struct {
	Name        string          `xml:"CDName"`
	URL         string          `xml:"CDURL"`
	Description string          `xml:"Description"`
	Status      string          `xml:"CDStatus"`
	Version     string          `xml:"CDVersion"`
	Revision    string          `xml:"CDRevision"`
	Date        string          `xml:"CDDate"`
	Definitions []ocdDefinition `xml:"CDDefinition"`
}

type ocdDefinition struct {
	Name        string     `xml:"Name"`
	Role        string     `xml:"Role"`
	Description string     `xml:"Description"`
	CMPs        []mixedXML `xml:"CMP"`
	FMPs        []mixedXML `xml:"FMP"`
	Examples    []mixedXML `xml:"Example"`
}

// mixedXML captures elements with mixed text and markup content, such as
// Example blocks that embed OMOBJ trees alongside prose.
type mixedXML struct {
	Inner string `xml:",innerxml"`
}

// ParseOCD parses a single Content Dictionary file. When the file omits
// CDName the file stem is used as the dictionary name.
func ParseOCD(path string) (ContentDictionary, []Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContentDictionary{}, nil, fmt.Errorf("openmath: open ocd: %w", err)
	}
	defer f.Close()

	cd, symbols, err := decodeOCD(f)
	if err != nil {
		return ContentDictionary{}, nil, fmt.Errorf("openmath: parse ocd %q: %w", path, err)
	}
	if cd.Name == "" {
		cd.Name = fileStem(path)
		for i := range symbols {
			symbols[i].CD = cd.Name
			symbols[i].ID = SymbolID(cd.Name, symbols[i].Name)
		}
	}
	return cd, symbols, nil
}

func decodeOCD(r io.Reader) (ContentDictionary, []Symbol, error) {
	var doc ocdFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return ContentDictionary{}, nil, err
	}

	cd := ContentDictionary{
		Name:        strings.TrimSpace(doc.Name),
		URL:         strings.TrimSpace(doc.URL),
		Description: strings.TrimSpace(doc.Description),
		Status:      strings.TrimSpace(doc.Status),
		Version:     strings.TrimSpace(doc.Version),
		Revision:    strings.TrimSpace(doc.Revision),
		Date:        strings.TrimSpace(doc.Date),
	}

	var symbols []Symbol
	for _, defn := range doc.Definitions {
		name := strings.TrimSpace(defn.Name)
		if name == "" {
			continue
		}

		sym := Symbol{
			ID:            SymbolID(cd.Name, name),
			CD:            cd.Name,
			Name:          name,
			Role:          strings.TrimSpace(defn.Role),
			Description:   collapseWhitespace(defn.Description),
			CMPProperties: flattenMixed(defn.CMPs),
			FMPCount:      len(defn.FMPs),
			Examples:      flattenMixed(defn.Examples),
		}
		sym.Keywords = symbolKeywords(sym)
		symbols = append(symbols, sym)
	}
	return cd, symbols, nil
}

func flattenMixed(elems []mixedXML) []string {
	var out []string
	for _, e := range elems {
		if text := innerText(e.Inner); text != "" {
			out = append(out, text)
		}
	}
	return out
}

var xmlTagRe = regexp.MustCompile(`<[^>]*>`)

var xmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// innerText strips embedded markup from mixed content and collapses runs
// of whitespace, approximating the concatenated text of all descendants.
func innerText(inner string) string {
	return collapseWhitespace(xmlEntities.Replace(xmlTagRe.ReplaceAllString(inner, " ")))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
