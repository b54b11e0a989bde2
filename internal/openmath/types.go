// Package openmath parses OpenMath Content Dictionary (.ocd) and Small
// Type System (.sts) files into a JSON knowledge base of mathematical
// symbol definitions.
package openmath

import "fmt"

// ContentDictionary holds the metadata block of a single .ocd file.
type ContentDictionary struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Version     string `json:"version,omitempty"`
	Revision    string `json:"revision,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Symbol is one mathematical symbol definition from a Content Dictionary,
// enriched with its type signature and SymPy equivalent where known.
type Symbol struct {
	ID            string   `json:"id"` // "cd:name", e.g. "arith1:gcd"
	CD            string   `json:"cd"`
	Name          string   `json:"name"`
	Role          string   `json:"role,omitempty"`
	Description   string   `json:"description,omitempty"`
	TypeSignature string   `json:"type_signature,omitempty"`
	CMPProperties []string `json:"cmp_properties,omitempty"`
	FMPCount      int      `json:"fmp_count"`
	Examples      []string `json:"examples,omitempty"`
	SymPyFunction string   `json:"sympy_function,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// KnowledgeBase is the full parsed corpus keyed by symbol ID.
type KnowledgeBase struct {
	Version             string                       `json:"version"`
	Source              string                       `json:"source"`
	ContentDictionaries map[string]ContentDictionary `json:"content_dictionaries"`
	Symbols             map[string]Symbol            `json:"symbols"`
}

// SymbolID joins a CD name and symbol name into the canonical "cd:name" form.
func SymbolID(cd, name string) string {
	return fmt.Sprintf("%s:%s", cd, name)
}
