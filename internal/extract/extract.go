// Package extract pulls code blocks and candidate answers out of model
// responses to math problems. Boxed answers are the most reliable
// signal; natural-language statements are a fallback.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Result holds everything extracted from one response.
type Result struct {
	Response       string
	CodeBlocks     []string
	BoxedAnswers   []string
	NaturalAnswers []string
}

// HasCode reports whether any code blocks were found.
func (r Result) HasCode() bool { return len(r.CodeBlocks) > 0 }

// HasAnswer reports whether any answer was found.
func (r Result) HasAnswer() bool {
	return len(r.BoxedAnswers) > 0 || len(r.NaturalAnswers) > 0
}

// PrimaryCode returns the first code block, or "".
func (r Result) PrimaryCode() string {
	if len(r.CodeBlocks) == 0 {
		return ""
	}
	return r.CodeBlocks[0]
}

// PrimaryAnswer returns the most reliable answer: the last boxed answer,
// else the last natural-language answer, else "". Models restate
// intermediate results, so the last occurrence is usually final.
func (r Result) PrimaryAnswer() string {
	if n := len(r.BoxedAnswers); n > 0 {
		return r.BoxedAnswers[n-1]
	}
	if n := len(r.NaturalAnswers); n > 0 {
		return r.NaturalAnswers[n-1]
	}
	return ""
}

// CandidateAnswers returns all answers in priority order: boxed answers
// last-first, then natural answers last-first, deduplicated. Useful when
// the comparator wants to try every candidate against the ground truth.
func (r Result) CandidateAnswers() []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(answers []string) {
		for i := len(answers) - 1; i >= 0; i-- {
			if _, dup := seen[answers[i]]; dup {
				continue
			}
			seen[answers[i]] = struct{}{}
			out = append(out, answers[i])
		}
	}
	add(r.BoxedAnswers)
	add(r.NaturalAnswers)
	return out
}

var (
	codeBlockRe        = regexp.MustCompile("(?is)```python[ \\t]*\\n(.*?)\\n```")
	codeBlockGenericRe = regexp.MustCompile("(?s)```[ \\t]*\\n(.*?)\\n```")

	// Models format execution results as ```output blocks; those are not
	// code and must be dropped before code extraction.
	outputBlockRe = regexp.MustCompile("(?is)```output[ \\t]*\\n.*?\\n```")
)

// Boxed answers appear in a few formats; one nesting level of braces is
// allowed inside, which covers fractions like \boxed{\frac{1}{2}}.
var boxedRes = []*regexp.Regexp{
	regexp.MustCompile(`\\boxed\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`),
	regexp.MustCompile(`\$\\boxed\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}\$`),
	regexp.MustCompile(`\\\\boxed\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`),
}

// Natural-language answer patterns, ordered by reliability.
var naturalRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:the\s+)?(?:final\s+)?answer\s+is[:\s]+\$?([^\n$.]+?)\$?(?:\.|$)`),
	regexp.MustCompile(`(?i)(?:the\s+)?result\s+is[:\s]+\$?([^\n$.]+?)\$?(?:\.|$)`),
	regexp.MustCompile(`(?i)(?:the\s+)?solution\s+is[:\s]+\$?([^\n$.]+?)\$?(?:\.|$)`),
	regexp.MustCompile(`(?i)therefore[,:\s]+(?:the\s+answer\s+is\s+)?([^\n.]+)`),
	regexp.MustCompile(`(?i)thus[,:\s]+(?:the\s+answer\s+is\s+)?([^\n.]+)`),
	regexp.MustCompile(`(?i)(?:the\s+)?simplified\s+(?:form|expression)\s+is[:\s]+\$?([^\n$.]+?)\$?(?:\.|$)`),
	regexp.MustCompile(`(?i)(?:the\s+)?value\s+of\s+\$?[a-zA-Z_]\$?\s+is\s+\$?([^\n.$]+)\$?`),
	regexp.MustCompile(`(?i)(?:we\s+(?:get|have|obtain|find)|so)\s+\$[a-zA-Z_]\s*=\s*([^$]+)\$`),
	regexp.MustCompile(`(?m)=\s*(\d+(?:\.\d+)?)\s*$`),
}

var (
	trailingPunctRe = regexp.MustCompile(`[.,;:!?]+$`)
	dollarSignRe    = regexp.MustCompile(`^\$+|\$+$`)
)

// problemStatementIndicators flag answers that were likely captured from
// a restated problem rather than the model's conclusion.
var problemStatementIndicators = []string{
	"find the",
	"what is",
	"calculate",
	"simplify",
	"given that",
	"if ",
	"suppose",
}

// Extract pulls code blocks, boxed answers, and natural-language answers
// from a model response.
func Extract(response string) Result {
	return Result{
		Response:       response,
		CodeBlocks:     extractCodeBlocks(response),
		BoxedAnswers:   extractBoxedAnswers(response),
		NaturalAnswers: extractNaturalAnswers(response),
	}
}

func extractCodeBlocks(text string) []string {
	text = outputBlockRe.ReplaceAllString(text, "")

	var blocks []string
	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) == 0 {
		for _, m := range codeBlockGenericRe.FindAllStringSubmatch(text, -1) {
			if looksLikePython(m[1]) {
				blocks = append(blocks, m[1])
			}
		}
	}

	var cleaned []string
	for _, block := range blocks {
		if block = strings.TrimSpace(block); block != "" {
			cleaned = append(cleaned, block)
		}
	}
	return cleaned
}

var pythonIndicators = []string{
	"import ",
	"from ",
	"def ",
	"class ",
	"print(",
	"sympy",
	"numpy",
	"math.",
	"= ",
	"if ",
	"for ",
	"while ",
}

func looksLikePython(code string) bool {
	for _, indicator := range pythonIndicators {
		if strings.Contains(code, indicator) {
			return true
		}
	}
	return false
}

func extractBoxedAnswers(text string) []string {
	var answers []string
	seen := map[string]struct{}{}
	for _, re := range boxedRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			cleaned := strings.TrimSpace(m[1])
			if cleaned == "" {
				continue
			}
			if _, dup := seen[cleaned]; dup {
				continue
			}
			seen[cleaned] = struct{}{}
			answers = append(answers, cleaned)
		}
	}
	return answers
}

type positionedAnswer struct {
	answer   string
	position int
}

func extractNaturalAnswers(text string) []string {
	var found []positionedAnswer
	for _, re := range naturalRes {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			if idx[2] < 0 {
				continue
			}
			found = append(found, positionedAnswer{
				answer:   text[idx[2]:idx[3]],
				position: idx[0],
			})
		}
	}

	var cleaned []positionedAnswer
	for _, pa := range found {
		answer := strings.TrimSpace(pa.answer)
		answer = trailingPunctRe.ReplaceAllString(answer, "")
		answer = dollarSignRe.ReplaceAllString(answer, "")
		if answer == "" || looksLikeProblemStatement(answer) {
			continue
		}
		cleaned = append(cleaned, positionedAnswer{answer: answer, position: pa.position})
	}

	// Later in the response means more likely final.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].position < cleaned[j].position
	})

	answers := make([]string, 0, len(cleaned))
	for _, pa := range cleaned {
		answers = append(answers, pa.answer)
	}
	return answers
}

func looksLikeProblemStatement(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range problemStatementIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// MergeCodeBlocks joins code blocks into one script with duplicate
// import lines removed.
func MergeCodeBlocks(blocks []string) string {
	if len(blocks) == 0 {
		return ""
	}
	return dedupImports(strings.Join(blocks, "\n\n"))
}

func dedupImports(code string) string {
	seen := map[string]struct{}{}
	var out []string
	for _, line := range strings.Split(code, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "import ") || strings.HasPrefix(stripped, "from ") {
			if _, dup := seen[stripped]; dup {
				continue
			}
			seen[stripped] = struct{}{}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
