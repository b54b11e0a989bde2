package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/openmath"
)

// Index is the keyword lookup over the knowledge base: plain keywords,
// operator aliases, and natural-language synonyms.
type Index struct {
	Version   string              `json:"version"`
	Generated string              `json:"generated,omitempty"`
	Index     map[string][]string `json:"index"`
	Aliases   map[string][]string `json:"aliases"`
	Synonyms  map[string][]string `json:"synonyms"`
}

// Operator aliases resolving directly to symbol IDs.
var operatorAliases = map[string][]string{
	"+":  {"arith1:plus"},
	"-":  {"arith1:minus", "arith1:unary_minus"},
	"*":  {"arith1:times"},
	"/":  {"arith1:divide"},
	"^":  {"arith1:power"},
	"**": {"arith1:power"},
	"!":  {"integer1:factorial"},
	"=":  {"relation1:eq"},
	"==": {"relation1:eq"},
	"!=": {"relation1:neq"},
	"<>": {"relation1:neq"},
	"<":  {"relation1:lt"},
	">":  {"relation1:gt"},
	"<=": {"relation1:leq"},
	">=": {"relation1:geq"},
	"≤":  {"relation1:leq"},
	"≥":  {"relation1:geq"},
	"≠":  {"relation1:neq"},
	"≈":  {"relation1:approx"},
	"∧":  {"logic1:and"},
	"∨":  {"logic1:or"},
	"¬":  {"logic1:not"},
	"→":  {"logic1:implies"},
	"↔":  {"logic1:equivalent"},
	"⊕":  {"logic1:xor"},
	"∈":  {"set1:in"},
	"∉":  {"set1:notin"},
	"⊂":  {"set1:prsubset"},
	"⊆":  {"set1:subset"},
	"∪":  {"set1:union"},
	"∩":  {"set1:intersect"},
	"∅":  {"set1:emptyset"},
	"×":  {"set1:cartesian_product"},
	"∀":  {"quant1:forall"},
	"∃":  {"quant1:exists"},
	"π":  {"nums1:pi"},
	"∞":  {"nums1:infinity"},
	"∂":  {"calculus1:partialdiff"},
	"∫":  {"calculus1:int"},
	"∇":  {"veccalc1:grad"},
}

// Natural-language synonyms resolving to symbol names.
var indexSynonyms = map[string][]string{
	"sine":                  {"sin"},
	"cosine":                {"cos"},
	"tangent":               {"tan"},
	"cotangent":             {"cot"},
	"secant":                {"sec"},
	"cosecant":              {"csc"},
	"arcsine":               {"arcsin"},
	"arccosine":             {"arccos"},
	"arctangent":            {"arctan"},
	"inverse sine":          {"arcsin"},
	"inverse cosine":        {"arccos"},
	"inverse tangent":       {"arctan"},
	"hyperbolic sine":       {"sinh"},
	"hyperbolic cosine":     {"cosh"},
	"hyperbolic tangent":    {"tanh"},
	"addition":              {"plus"},
	"add":                   {"plus"},
	"sum":                   {"plus"},
	"subtraction":           {"minus"},
	"subtract":              {"minus"},
	"difference":            {"minus"},
	"multiplication":        {"times"},
	"multiply":              {"times"},
	"product":               {"times"},
	"division":              {"divide"},
	"divide":                {"divide"},
	"quotient":              {"divide", "quotient"},
	"exponent":              {"power"},
	"exponentiation":        {"power"},
	"raise to power":        {"power"},
	"square root":           {"root"},
	"nth root":              {"root"},
	"cube root":             {"root"},
	"absolute value":        {"abs"},
	"modulus":               {"abs"},
	"magnitude":             {"abs"},
	"greatest common divisor": {"gcd"},
	"highest common factor":   {"gcd"},
	"hcf":                     {"gcd"},
	"least common multiple":   {"lcm"},
	"lowest common multiple":  {"lcm"},
	"factorial":               {"factorial"},
	"remainder":               {"remainder"},
	"modulo":                  {"remainder"},
	"mod":                     {"remainder"},
	"equal":                   {"eq"},
	"equals":                  {"eq"},
	"equality":                {"eq"},
	"not equal":               {"neq"},
	"unequal":                 {"neq"},
	"inequality":              {"neq"},
	"less than":               {"lt"},
	"smaller":                 {"lt"},
	"greater than":            {"gt"},
	"larger":                  {"gt"},
	"bigger":                  {"gt"},
	"less than or equal":      {"leq"},
	"at most":                 {"leq"},
	"greater than or equal":   {"geq"},
	"at least":                {"geq"},
	"approximately":           {"approx"},
	"approximately equal":     {"approx"},
	"negation":                {"not"},
	"conjunction":             {"and"},
	"disjunction":             {"or"},
	"implication":             {"implies"},
	"biconditional":           {"equivalent"},
	"exclusive or":            {"xor"},
	"derivative":              {"diff"},
	"differentiate":           {"diff"},
	"differentiation":         {"diff"},
	"partial derivative":      {"partialdiff"},
	"integral":                {"int"},
	"integrate":               {"int"},
	"integration":             {"int"},
	"definite integral":       {"defint"},
	"antiderivative":          {"int"},
	"limit":                   {"limit"},
	"union":                   {"union"},
	"intersection":            {"intersect"},
	"set difference":          {"setdiff"},
	"complement":              {"setdiff"},
	"element of":              {"in"},
	"member of":               {"in"},
	"belongs to":              {"in"},
	"not element of":          {"notin"},
	"subset":                  {"subset"},
	"superset":                {"subset"},
	"proper subset":           {"prsubset"},
	"empty set":               {"emptyset"},
	"null set":                {"emptyset"},
	"cartesian product":       {"cartesian_product"},
	"euler's number":          {"e"},
	"natural base":            {"e"},
	"imaginary unit":          {"i"},
	"pi":                      {"pi"},
	"euler-mascheroni":        {"gamma"},
	"infinity":                {"infinity"},
	"infinite":                {"infinity"},
	"natural numbers":         {"N"},
	"naturals":                {"N"},
	"integers":                {"Z"},
	"whole numbers":           {"Z"},
	"rational numbers":        {"Q"},
	"rationals":               {"Q"},
	"real numbers":            {"R"},
	"reals":                   {"R"},
	"complex numbers":         {"C"},
	"complexes":               {"C"},
	"primes":                  {"P"},
	"prime numbers":           {"P"},
	"ceiling":                 {"ceiling"},
	"round up":                {"ceiling"},
	"floor":                   {"floor"},
	"round down":              {"floor"},
	"truncate":                {"trunc"},
	"real part":               {"real"},
	"imaginary part":          {"imaginary"},
	"complex conjugate":       {"conjugate"},
	"argument":                {"argument"},
	"phase":                   {"argument"},
	"matrix":                  {"matrix"},
	"vector":                  {"vector"},
	"determinant":             {"determinant"},
	"det":                     {"determinant"},
	"transpose":               {"transpose"},
	"dot product":             {"scalarproduct"},
	"scalar product":          {"scalarproduct"},
	"inner product":           {"scalarproduct"},
	"cross product":           {"vectorproduct"},
	"vector product":          {"vectorproduct"},
	"outer product":           {"outerproduct"},
	"average":                 {"mean"},
	"standard deviation":      {"sdev"},
	"variance":                {"variance"},
	"median":                  {"median"},
	"mode":                    {"mode"},
	"minimum":                 {"min"},
	"maximum":                 {"max"},
	"binomial coefficient":    {"binomial"},
	"choose":                  {"binomial"},
	"n choose k":              {"binomial"},
	"combinations":            {"binomial"},
	"open interval":           {"interval_oo"},
	"closed interval":         {"interval_cc"},
	"piecewise function":      {"piecewise"},
	"conditional":             {"piecewise"},
	"for all":                 {"forall"},
	"universal":               {"forall"},
	"there exists":            {"exists"},
	"existential":             {"exists"},
	"gradient":                {"grad"},
	"divergence":              {"divergence"},
	"curl":                    {"curl"},
	"laplacian":               {"Laplacian"},
}

// BuildIndex derives the keyword index from a knowledge base: every
// symbol keyword maps to its symbol IDs, and each synonym maps to every
// symbol carrying the target as a keyword or name.
func BuildIndex(kb *openmath.KnowledgeBase) *Index {
	idx := &Index{
		Version:   "1.0.0",
		Generated: time.Now().UTC().Format(time.RFC3339),
		Index:     map[string][]string{},
		Aliases:   operatorAliases,
		Synonyms:  indexSynonyms,
	}
	if kb == nil {
		return idx
	}

	ids := kb.SortedSymbolIDs()
	for _, id := range ids {
		for _, kw := range kb.Symbols[id].Keywords {
			appendUnique(idx.Index, strings.ToLower(kw), id)
		}
	}

	for synonym, targets := range indexSynonyms {
		key := strings.ToLower(synonym)
		for _, target := range targets {
			for _, id := range ids {
				sym := kb.Symbols[id]
				if sym.Name == target || containsString(sym.Keywords, target) {
					appendUnique(idx.Index, key, id)
				}
			}
		}
	}

	return idx
}

// LoadIndex reads an index previously written by Save.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("retrieval: parse index %q: %w", path, err)
	}
	if idx.Index == nil {
		idx.Index = map[string][]string{}
	}
	if idx.Aliases == nil {
		idx.Aliases = map[string][]string{}
	}
	if idx.Synonyms == nil {
		idx.Synonyms = map[string][]string{}
	}
	return &idx, nil
}

// Save writes the index as indented JSON.
func (idx *Index) Save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("retrieval: encode index: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("retrieval: create %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("retrieval: write index: %w", err)
	}
	return nil
}

// Keywords returns the indexed keyword set in sorted order.
func (idx *Index) Keywords() []string {
	out := make([]string, 0, len(idx.Index))
	for kw := range idx.Index {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

func appendUnique(m map[string][]string, key, id string) {
	if containsString(m[key], id) {
		return
	}
	m[key] = append(m[key], id)
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
