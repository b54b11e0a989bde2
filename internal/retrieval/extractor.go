// Package retrieval finds OpenMath symbols relevant to a math problem.
// It layers keyword lookups, BM25 lexical scoring, and dense embeddings
// fused with reciprocal rank fusion, plus the reranker-score threshold
// filter applied before inference.
package retrieval

import (
	"regexp"
	"sort"
	"strings"
)

// Extraction holds the terms pulled from a problem statement.
type Extraction struct {
	Problem   string
	Keywords  []string
	Operators []string
	Functions []string
	Phrases   []string
}

// AllTerms returns keywords, operators, functions, and phrases combined.
func (e Extraction) AllTerms() []string {
	out := make([]string, 0, len(e.Keywords)+len(e.Operators)+len(e.Functions)+len(e.Phrases))
	out = append(out, e.Keywords...)
	out = append(out, e.Operators...)
	out = append(out, e.Functions...)
	out = append(out, e.Phrases...)
	return out
}

var mathFunctions = newSet(
	"sin", "cos", "tan", "cot", "sec", "csc",
	"arcsin", "arccos", "arctan", "arccot", "arcsec", "arccsc",
	"sinh", "cosh", "tanh", "coth", "sech", "csch",
	"log", "ln", "exp",
	"gcd", "lcm", "mod", "abs", "sqrt",
	"lim", "limit", "diff", "derivative", "integral", "integrate",
	"floor", "ceil", "round", "factorial",
)

// Longest first so "**" is recorded before "*".
var textOperators = []string{
	"**", "==", "!=", "<>", "<=", ">=",
	"+", "-", "*", "/", "^", "=", "<", ">", "!", "%",
}

type unicodeOp struct {
	symbol      string
	replacement string
}

var unicodeOperators = []unicodeOp{
	{"≤", "<="},
	{"≥", ">="},
	{"≠", "!="},
	{"÷", "/"},
	{"×", "*"},
	{"−", "-"},
	{"π", "pi"},
	{"∞", "infinity"},
	{"√", "sqrt"},
	{"∫", "integral"},
	{"∂", "partial"},
	{"∑", "sum"},
	{"∏", "product"},
	{"∈", "in"},
	{"∉", "notin"},
	{"∀", "forall"},
	{"∃", "exists"},
	{"∧", "and"},
	{"∨", "or"},
	{"¬", "not"},
}

// LaTeX commands mapped to extractable keyword text. Applied before
// lowercasing since LaTeX commands are case sensitive; replacement runs
// longest command first to avoid partial matches.
var latexSymbols = map[string]string{
	`\lceil`:    " ceiling ",
	`\rceil`:    " ceiling ",
	`\lfloor`:   " floor ",
	`\rfloor`:   " floor ",
	`\frac`:     " fraction ",
	`\sqrt`:     " sqrt ",
	`\cbrt`:     " cbrt ",
	`\sin`:      " sin ",
	`\cos`:      " cos ",
	`\tan`:      " tan ",
	`\cot`:      " cot ",
	`\sec`:      " sec ",
	`\csc`:      " csc ",
	`\arcsin`:   " arcsin ",
	`\arccos`:   " arccos ",
	`\arctan`:   " arctan ",
	`\sinh`:     " sinh ",
	`\cosh`:     " cosh ",
	`\tanh`:     " tanh ",
	`\ln`:       " ln ",
	`\log`:      " log ",
	`\exp`:      " exp ",
	`\sum`:      " sum ",
	`\prod`:     " product ",
	`\int`:      " integral ",
	`\gcd`:      " gcd ",
	`\lcm`:      " lcm ",
	`\mod`:      " mod ",
	`\bmod`:     " mod ",
	`\pmod`:     " mod ",
	`\lim`:      " limit ",
	`\infty`:    " infinity ",
	`\pm`:       " plus_minus ",
	`\mp`:       " minus_plus ",
	`\cdot`:     " times ",
	`\times`:    " times ",
	`\div`:      " divide ",
	`\Re`:       " real ",
	`\Im`:       " imaginary ",
	`\bar`:      " conjugate ",
	`\overline`: " conjugate ",
	`\in`:       " element_of ",
	`\notin`:    " not_element_of ",
	`\subset`:   " subset ",
	`\subseteq`: " subset ",
	`\cup`:      " union ",
	`\cap`:      " intersection ",
	`\setminus`: " set_difference ",
	`\emptyset`: " empty_set ",
	`\forall`:   " for_all ",
	`\exists`:   " exists ",
	`\neg`:      " not ",
	`\land`:     " and ",
	`\lor`:      " or ",
	`\implies`:  " implies ",
	`\iff`:      " if_and_only_if ",
	`\le`:       " <= ",
	`\leq`:      " <= ",
	`\ge`:       " >= ",
	`\geq`:      " >= ",
	`\ne`:       " != ",
	`\neq`:      " != ",
	`\abs`:      " absolute_value ",
	`\lvert`:    " absolute_value ",
	`\rvert`:    " absolute_value ",
	`\|`:        " norm ",
}

var latexCommands = func() []string {
	cmds := make([]string, 0, len(latexSymbols))
	for cmd := range latexSymbols {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		if len(cmds[i]) != len(cmds[j]) {
			return len(cmds[i]) > len(cmds[j])
		}
		return cmds[i] < cmds[j]
	})
	return cmds
}()

// Longer phrases first so sub-phrases don't shadow them.
var mathPhrases = []string{
	"greatest common divisor",
	"least common multiple",
	"lowest common multiple",
	"highest common factor",
	"absolute value",
	"square root",
	"cube root",
	"natural logarithm",
	"common logarithm",
	"partial derivative",
	"definite integral",
	"indefinite integral",
	"inverse sine",
	"inverse cosine",
	"inverse tangent",
	"hyperbolic sine",
	"hyperbolic cosine",
	"hyperbolic tangent",
	"complex conjugate",
	"real part",
	"imaginary part",
	"dot product",
	"cross product",
	"scalar product",
	"less than or equal",
	"greater than or equal",
	"not equal",
	"element of",
	"subset of",
	"union of",
	"intersection of",
	"standard deviation",
	"arithmetic mean",
	"geometric mean",
	"binomial coefficient",
	"n choose k",
	"for all",
	"there exists",
}

var mathTerms = newSet(
	"sum", "product", "quotient", "remainder", "difference",
	"addition", "subtraction", "multiplication", "division",
	"exponent", "exponentiation", "power", "root",
	"derivative", "integral", "differentiate", "integrate",
	"antiderivative", "limit", "infinity", "continuous",
	"prime", "composite", "factorial", "divisor", "divisible",
	"multiple", "factor", "modulo", "modulus",
	"set", "union", "intersection", "complement", "subset",
	"element", "member", "empty", "cardinality",
	"equation", "inequality", "variable", "constant",
	"coefficient", "polynomial", "quadratic", "linear",
	"sine", "cosine", "tangent", "cotangent", "secant", "cosecant",
	"angle", "radian", "degree",
	"area", "perimeter", "volume", "circumference",
	"radius", "diameter", "triangle", "circle", "square",
	"matrix", "vector", "determinant", "transpose", "inverse",
	"eigenvalue", "eigenvector",
	"mean", "median", "mode", "variance", "deviation",
	"probability", "distribution", "expected",
	"implies", "equivalent", "true", "false", "forall", "exists",
	"pi", "euler", "imaginary",
)

// Problem-statement stop words. These match many symbol descriptions and
// drown out the discriminative terms; the ambiguous entries at the end
// ("times", "base", "degree"...) mean different things in different math
// contexts, so they hurt more than they help.
var extractorStopWords = newSet(
	"a", "an", "the", "this", "that", "these", "those",
	"is", "are", "was", "were", "be", "been", "being",
	"has", "have", "had", "do", "does", "did",
	"find", "calculate", "compute", "solve", "determine", "evaluate",
	"show", "prove", "verify", "check", "get", "give", "let",
	"takes", "express", "answer", "write", "put", "simplify",
	"of", "in", "to", "for", "with", "on", "at", "by", "from",
	"into", "through", "during", "before", "after", "above", "below",
	"between", "under", "over",
	"and", "or", "but", "if", "then", "when", "while", "although",
	"it", "its", "they", "their", "we", "our", "you", "your",
	"he", "she", "him", "her", "his",
	"what", "which", "who", "whom", "whose", "where", "how", "why",
	"all", "each", "every", "both", "few", "more", "most", "other",
	"some", "such", "no", "any", "only", "own", "same", "so", "than",
	"too", "very", "just", "also", "now", "here", "there",
	"can", "will", "shall", "may", "might", "must", "should", "would", "could",
	"about", "as", "like", "using", "given", "following", "use",
	"number", "numbers", "value", "values", "form", "many", "much",
	"first", "second", "third", "last", "next", "new", "old",
	"total", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"positive", "negative", "real", "smallest", "largest", "greater", "smaller",
	"image", "line", "end", "cases", "begin", "text",
	"argument", "result", "object", "function", "called", "name",
	"type", "symbol", "element", "list", "apply", "return",
	"b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	"times", "coordinates", "point", "direction", "turns", "side",
	"sides", "base", "degree", "order", "term", "terms",
)

var (
	asymptoteRe = regexp.MustCompile(`(?is)\[asy\].*?\[/asy\]`)
	tokenRe     = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*|\d+\.?\d*`)
)

// Extractor pulls mathematical terms out of problem statements. An
// optional keyword index widens the vocabulary beyond the built-in tables.
type Extractor struct {
	indexed map[string]struct{}
}

// NewExtractor builds an extractor; idx may be nil.
func NewExtractor(idx *Index) *Extractor {
	e := &Extractor{indexed: map[string]struct{}{}}
	if idx != nil {
		for kw := range idx.Index {
			e.indexed[kw] = struct{}{}
		}
		for alias := range idx.Aliases {
			e.indexed[alias] = struct{}{}
		}
		for syn := range idx.Synonyms {
			e.indexed[strings.ToLower(syn)] = struct{}{}
		}
	}
	return e
}

// Extract returns the mathematical keywords, operators, functions, and
// phrases found in a problem statement.
func (e *Extractor) Extract(problem string) Extraction {
	result := Extraction{Problem: problem}

	// Asymptote blocks carry drawing commands, not math content.
	cleaned := asymptoteRe.ReplaceAllString(problem, " ")
	cleaned = convertLatexSymbols(cleaned)
	text := strings.ToLower(cleaned)

	text, result.Phrases = extractPhrases(text)

	for _, op := range unicodeOperators {
		if strings.Contains(problem, op.symbol) {
			result.Operators = append(result.Operators, op.symbol)
			text = strings.ReplaceAll(text, op.symbol, " "+op.replacement+" ")
		}
	}

	for _, op := range textOperators {
		if strings.Contains(text, op) {
			result.Operators = append(result.Operators, op)
		}
	}

	tokens := tokenize(text)
	for _, tok := range tokens {
		if _, ok := mathFunctions[tok]; ok {
			result.Functions = append(result.Functions, tok)
		}
	}
	for _, tok := range tokens {
		if _, stop := extractorStopWords[tok]; stop {
			continue
		}
		if _, ok := mathTerms[tok]; ok {
			result.Keywords = append(result.Keywords, tok)
		} else if _, ok := e.indexed[tok]; ok {
			result.Keywords = append(result.Keywords, tok)
		}
	}

	result.Keywords = dedupe(result.Keywords)
	result.Operators = dedupe(result.Operators)
	result.Functions = dedupe(result.Functions)
	result.Phrases = dedupe(result.Phrases)
	return result
}

func extractPhrases(text string) (string, []string) {
	var found []string
	for _, phrase := range mathPhrases {
		if strings.Contains(text, phrase) {
			found = append(found, phrase)
			text = strings.ReplaceAll(text, phrase, " ")
		}
	}
	return text, found
}

func convertLatexSymbols(text string) string {
	for _, cmd := range latexCommands {
		text = strings.ReplaceAll(text, cmd, latexSymbols[cmd])
	}
	return text
}

func tokenize(text string) []string {
	raw := tokenRe.FindAllString(text, -1)
	out := make([]string, len(raw))
	for i, t := range raw {
		out[i] = strings.ToLower(t)
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func newSet(items ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
