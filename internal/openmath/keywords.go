package openmath

import (
	"sort"
	"strings"
	"unicode"
)

// parserStopWords filters non-discriminative English words out of symbol
// keyword sets. A minimal list pollutes the index: words like "used" or
// "first" end up mapping to hundreds of symbols.
var parserStopWords = map[string]struct{}{}

func init() {
	words := []string{
		// Core articles/determiners
		"a", "an", "the", "this", "that", "these", "those",
		// Common verbs (all forms)
		"is", "are", "was", "were", "be", "been", "being",
		"has", "have", "had", "do", "does", "did",
		"find", "calculate", "compute", "solve", "determine", "evaluate",
		"show", "prove", "verify", "check", "get", "give", "let",
		"takes", "express", "answer", "write", "put", "simplify",
		"applied", "applying", "applies",
		"representing", "represented",
		"denote", "denotes", "denoted", "denoting",
		"specify", "specifying", "specified",
		"described", "describing", "describes",
		"evaluated", "evaluating", "evaluates",
		"construct", "constructs", "constructed", "constructing",
		"consists", "consisting",
		"intended", "intending",
		"corresponds", "corresponding",
		// Prepositions
		"of", "in", "to", "for", "with", "on", "at", "by", "from",
		"into", "through", "during", "before", "after", "above", "below",
		"between", "under", "over",
		// Conjunctions
		"and", "or", "but", "if", "then", "when", "while", "although",
		// Pronouns
		"it", "its", "they", "their", "we", "our", "you", "your",
		"he", "she", "him", "her", "his",
		// Question words
		"what", "which", "who", "whom", "whose", "where", "how", "why",
		// Other common words
		"all", "each", "every", "both", "few", "more", "most", "other",
		"some", "such", "no", "any", "only", "own", "same", "so", "than",
		"too", "very", "just", "also", "now", "here", "there",
		"can", "will", "shall", "may", "might", "must", "should", "would", "could",
		"about", "as", "like", "using", "given", "following", "use",
		// Description noise words
		"symbol", "represent", "represents", "function", "return", "returns",
		"used", "defined", "element", "object",
		"argument", "arguments", "result", "type", "called", "name", "list", "apply",
		"first", "second", "third", "last", "next", "new", "old",
		"number", "numbers", "value", "values", "form", "many", "much",
		"indicates", "indicate", "contains", "specifies", "provides",
		"one", "two", "three", "true", "false", "case", "cases",
		"default", "usually", "typically", "either", "whether", "not",
		// Reference/documentation noise words
		"standard", "section", "note", "notes", "fact", "facts",
		"abramowitz", "stegun",
		"openmath",
		"example", "examples",
		"see", "chapter", "page", "definition", "definitions",
		"reference", "references", "refer", "refers",
		"similar", "way", "ways", "manner",
		"particular", "general", "specific", "certain",
		// Single letters (internal references in descriptions)
		"b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
		"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	}
	for _, w := range words {
		parserStopWords[w] = struct{}{}
	}
}

// symbolKeywords derives searchable keywords for a symbol from its name,
// description, and CMP properties. CMPs carry mathematical terms such as
// "factorial" or "integral" that descriptions often omit. The result is
// sorted for deterministic output.
func symbolKeywords(sym Symbol) []string {
	seen := make(map[string]struct{})

	if sym.Name != "" {
		seen[strings.ToLower(sym.Name)] = struct{}{}
	}

	addText := func(text string) {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			clean := keepAlnum(word)
			if len(clean) <= 2 {
				continue
			}
			if _, stop := parserStopWords[clean]; stop {
				continue
			}
			seen[clean] = struct{}{}
		}
	}

	addText(sym.Description)
	for _, cmp := range sym.CMPProperties {
		addText(cmp)
	}

	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func keepAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
