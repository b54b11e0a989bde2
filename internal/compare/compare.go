// Package compare decides whether a predicted answer matches the ground
// truth. Methods run in order of reliability: exact string match, then
// numeric, fraction, unordered multi-value, LaTeX-normalized numeric,
// and finally normalized string comparison.
package compare

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultTolerance is the absolute and relative tolerance for numeric
// comparison.
const DefaultTolerance = 1e-9

const maxFractionDenominator = 10000

// Result records one comparison.
type Result struct {
	Predicted             string `json:"predicted"`
	GroundTruth           string `json:"ground_truth"`
	IsEquivalent          bool   `json:"is_equivalent"`
	Method                string `json:"comparison_method"`
	NormalizedPredicted   string `json:"normalized_predicted,omitempty"`
	NormalizedGroundTruth string `json:"normalized_ground_truth,omitempty"`
	ErrorMessage          string `json:"error_message,omitempty"`
}

// Comparator checks mathematical answers for equivalence.
type Comparator struct {
	tolerance float64
}

// New returns a comparator. A zero tolerance selects DefaultTolerance.
func New(tolerance float64) *Comparator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Comparator{tolerance: tolerance}
}

// Compare checks the predicted answer against the ground truth, trying
// each method until one reports equivalence.
func (c *Comparator) Compare(predicted, groundTruth string) Result {
	pred := strings.TrimSpace(predicted)
	truth := strings.TrimSpace(groundTruth)

	result := Result{Predicted: pred, GroundTruth: truth, Method: "none"}
	if pred == "" || truth == "" {
		result.ErrorMessage = "empty answer"
		return result
	}

	methods := []struct {
		name string
		fn   func(pred, truth string) (bool, string, string)
	}{
		{"exact_match", c.exactMatch},
		{"numeric", c.numericCompare},
		{"fraction", c.fractionCompare},
		{"set_compare", c.setCompare},
		{"latex_numeric", c.latexNumericCompare},
		{"normalized_string", c.normalizedStringCompare},
	}
	for _, method := range methods {
		equivalent, normPred, normTruth := method.fn(pred, truth)
		if equivalent {
			result.IsEquivalent = true
			result.Method = method.name
			result.NormalizedPredicted = normPred
			result.NormalizedGroundTruth = normTruth
			return result
		}
	}

	result.Method = "no_match"
	return result
}

func (c *Comparator) exactMatch(pred, truth string) (bool, string, string) {
	return pred == truth, pred, truth
}

func (c *Comparator) numericCompare(pred, truth string) (bool, string, string) {
	predNum, okPred := c.parseNumber(pred)
	truthNum, okTruth := c.parseNumber(truth)
	if !okPred || !okTruth {
		return false, "", ""
	}
	return c.numbersClose(predNum, truthNum),
		strconv.FormatFloat(predNum, 'g', -1, 64),
		strconv.FormatFloat(truthNum, 'g', -1, 64)
}

// numbersClose applies the absolute tolerance, then a relative tolerance
// so large magnitudes still compare sensibly.
func (c *Comparator) numbersClose(a, b float64) bool {
	if math.Abs(a-b) <= c.tolerance {
		return true
	}
	if b != 0 && math.Abs((a-b)/b) <= c.tolerance {
		return true
	}
	return false
}

func (c *Comparator) fractionCompare(pred, truth string) (bool, string, string) {
	predFrac := c.parseFraction(pred)
	truthFrac := c.parseFraction(truth)
	if predFrac == nil || truthFrac == nil {
		return false, "", ""
	}
	return predFrac.Cmp(truthFrac) == 0, predFrac.RatString(), truthFrac.RatString()
}

// setSeparators mark multi-value answers like polynomial roots, where
// order does not matter.
var setSeparators = []string{",", ";", " and "}

var (
	enclosingBracketsRe = regexp.MustCompile(`^[\[{(]+|[\]})]+$`)
	latexDelimiterRe    = regexp.MustCompile(`^\$+|\$+$`)
)

func cleanSetValue(v string) string {
	v = strings.TrimSpace(v)
	v = enclosingBracketsRe.ReplaceAllString(v, "")
	v = latexDelimiterRe.ReplaceAllString(v, "")
	return strings.TrimSpace(v)
}

func splitSetValues(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if cleaned := cleanSetValue(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func (c *Comparator) setCompare(pred, truth string) (bool, string, string) {
	var predValues, truthValues []string
	for _, sep := range setSeparators {
		inPred := strings.Contains(pred, sep)
		inTruth := strings.Contains(truth, sep)
		if inPred && inTruth {
			predValues = splitSetValues(pred, sep)
			truthValues = splitSetValues(truth, sep)
			break
		}
		if inPred && predValues == nil {
			predValues = splitSetValues(pred, sep)
		}
		if inTruth && truthValues == nil {
			truthValues = splitSetValues(truth, sep)
		}
	}
	if predValues == nil && truthValues == nil {
		return false, "", ""
	}
	if predValues == nil {
		if v := cleanSetValue(pred); v != "" {
			predValues = []string{v}
		}
	}
	if truthValues == nil {
		if v := cleanSetValue(truth); v != "" {
			truthValues = []string{v}
		}
	}
	if len(predValues) != len(truthValues) || len(predValues) == 0 {
		return false, "", ""
	}

	matched := make([]bool, len(truthValues))
	for _, pv := range predValues {
		found := false
		for i, tv := range truthValues {
			if matched[i] {
				continue
			}
			if c.valuesMatch(pv, tv) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false, "", ""
		}
	}

	predSorted := append([]string(nil), predValues...)
	truthSorted := append([]string(nil), truthValues...)
	sort.Strings(predSorted)
	sort.Strings(truthSorted)
	return true, strings.Join(predSorted, ", "), strings.Join(truthSorted, ", ")
}

// valuesMatch compares a single pair of set elements.
func (c *Comparator) valuesMatch(pred, truth string) bool {
	if pred == truth {
		return true
	}
	if predNum, ok := c.parseNumber(pred); ok {
		if truthNum, ok := c.parseNumber(truth); ok && math.Abs(predNum-truthNum) <= c.tolerance {
			return true
		}
	}
	if predNum, ok := evalArithmetic(latexToExpr(pred)); ok {
		if truthNum, ok := evalArithmetic(latexToExpr(truth)); ok && c.numbersClose(predNum, truthNum) {
			return true
		}
	}
	return false
}

// latexNumericCompare normalizes LaTeX to plain arithmetic and compares
// the evaluated values. This catches pairs like \frac{1}{2} vs 0.5 and
// \sqrt{4}+1 vs 3.
func (c *Comparator) latexNumericCompare(pred, truth string) (bool, string, string) {
	predExpr := latexToExpr(pred)
	truthExpr := latexToExpr(truth)

	predNum, okPred := evalArithmetic(predExpr)
	truthNum, okTruth := evalArithmetic(truthExpr)
	if !okPred || !okTruth {
		return false, predExpr, truthExpr
	}
	return c.numbersClose(predNum, truthNum), predExpr, truthExpr
}

func (c *Comparator) normalizedStringCompare(pred, truth string) (bool, string, string) {
	predNorm := normalizeString(pred)
	truthNorm := normalizeString(truth)
	return predNorm == truthNorm, predNorm, truthNorm
}

var (
	fractionNotationRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*/\s*(-?\d+(?:\.\d+)?)$`)
	latexFracRe        = regexp.MustCompile(`\\frac\{(\d+)\}\{(\d+)\}`)
	intFractionRe      = regexp.MustCompile(`^(-?\d+)\s*/\s*(-?\d+)$`)
	safeExprRe         = regexp.MustCompile(`^[\d.+\-*/()\s]+$`)
)

// parseNumber interprets a string as a float, a/b fraction, or a simple
// arithmetic expression.
func (c *Comparator) parseNumber(s string) (float64, bool) {
	s = normalizeString(s)
	if s == "" {
		return 0, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}

	if m := fractionNotationRe.FindStringSubmatch(s); m != nil {
		num, errN := strconv.ParseFloat(m[1], 64)
		den, errD := strconv.ParseFloat(m[2], 64)
		if errN == nil && errD == nil && den != 0 {
			return num / den, true
		}
	}

	if safeExprRe.MatchString(s) {
		if f, ok := evalArithmetic(s); ok {
			return f, true
		}
	}
	return 0, false
}

// parseFraction interprets a string as an exact rational, with floats
// snapped to the closest fraction with a small denominator.
func (c *Comparator) parseFraction(s string) *big.Rat {
	s = normalizeString(s)
	if s == "" {
		return nil
	}

	if r, ok := new(big.Rat).SetString(s); ok {
		return limitDenominator(r, maxFractionDenominator)
	}

	if m := latexFracRe.FindStringSubmatch(s); m != nil {
		num, errN := strconv.ParseInt(m[1], 10, 64)
		den, errD := strconv.ParseInt(m[2], 10, 64)
		if errN == nil && errD == nil && den != 0 {
			return big.NewRat(num, den)
		}
	}

	if m := intFractionRe.FindStringSubmatch(s); m != nil {
		num, errN := strconv.ParseInt(m[1], 10, 64)
		den, errD := strconv.ParseInt(m[2], 10, 64)
		if errN == nil && errD == nil && den != 0 {
			return big.NewRat(num, den)
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil
		}
		return limitDenominator(r, maxFractionDenominator)
	}
	return nil
}

// limitDenominator returns the closest rational to r with a denominator
// no larger than maxDen, walking the continued-fraction convergents.
func limitDenominator(r *big.Rat, maxDen int64) *big.Rat {
	limit := big.NewInt(maxDen)
	if r.Denom().Cmp(limit) <= 0 {
		return r
	}

	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n := new(big.Int).Set(r.Num())
	d := new(big.Int).Set(r.Denom())

	for d.Sign() != 0 {
		a := new(big.Int).Quo(n, d)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			break
		}
		p2 := new(big.Int).Add(p0, new(big.Int).Mul(a, p1))
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, new(big.Int).Sub(n, new(big.Int).Mul(a, d))
	}

	k := new(big.Int).Quo(new(big.Int).Sub(limit, q0), q1)
	bound1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	bound2 := new(big.Rat).SetFrac(p1, q1)

	diff1 := new(big.Rat).Sub(bound1, r)
	diff2 := new(big.Rat).Sub(bound2, r)
	if diff2.Abs(diff2).Cmp(diff1.Abs(diff1)) <= 0 {
		return bound2
	}
	return bound1
}

// Simple LaTeX commands become plain arithmetic. Longer commands run
// first so \neq does not lose its tail to \ne.
var latexReplacements = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\\left`), ""},
	{regexp.MustCompile(`\\right`), ""},
	{regexp.MustCompile(`\\pi`), "pi"},
	{regexp.MustCompile(`\\infty`), "oo"},
	{regexp.MustCompile(`\\cdot`), "*"},
	{regexp.MustCompile(`\\times`), "*"},
	{regexp.MustCompile(`\\div`), "/"},
	{regexp.MustCompile(`\\pm`), "+-"},
	{regexp.MustCompile(`\\neq`), "!="},
	{regexp.MustCompile(`\\ne`), "!="},
	{regexp.MustCompile(`\\le`), "<="},
	{regexp.MustCompile(`\\ge`), ">="},
	{regexp.MustCompile(`\^`), "**"},
	{regexp.MustCompile(`\\[,;\s]+`), " "},
}

// Nested structures need iterative rewriting: \frac{\frac{1}{2}}{3}
// resolves inner-out over multiple passes.
var nestedLatexPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\\frac\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`), "((${1})/(${2}))"},
	{regexp.MustCompile(`\\sqrt\[(\d+)\]\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`), "((${2}))**(1/(${1}))"},
	{regexp.MustCompile(`\\sqrt\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`), "sqrt(${1})"},
}

const maxNestedIterations = 10

// latexToExpr converts LaTeX notation into a plain arithmetic string.
func latexToExpr(s string) string {
	result := strings.ReplaceAll(s, "$", "")

	for _, rule := range latexReplacements {
		result = rule.re.ReplaceAllString(result, rule.replacement)
	}

	for i := 0; i < maxNestedIterations; i++ {
		changed := false
		for _, rule := range nestedLatexPatterns {
			next := rule.re.ReplaceAllString(result, rule.replacement)
			if next != result {
				changed = true
				result = next
			}
		}
		if !changed {
			break
		}
	}

	result = strings.ReplaceAll(result, "{", "(")
	result = strings.ReplaceAll(result, "}", ")")
	return strings.Join(strings.Fields(result), " ")
}

var dollarRunRe = regexp.MustCompile(`\$+`)

func normalizeString(s string) string {
	s = dollarRunRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, `\`, "")
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}

// Tolerance returns the configured numeric tolerance.
func (c *Comparator) Tolerance() float64 { return c.tolerance }

// arithmetic expression evaluator: + - * / ** parentheses, sqrt, pi.

type exprParser struct {
	input string
	pos   int
}

// evalArithmetic evaluates a plain arithmetic expression. The second
// return is false when the expression cannot be evaluated.
func evalArithmetic(s string) (float64, bool) {
	p := &exprParser{input: s}
	v, err := p.parseExpr()
	if err != nil {
		return 0, false
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, false
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch p.input[p.pos] {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch {
		case p.input[p.pos] == '*' && !strings.HasPrefix(p.input[p.pos:], "**"):
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case p.input[p.pos] == '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("compare: division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], "**") {
		p.pos += 2
		exp, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, exp), nil
	}
	return v, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '-':
			p.pos++
			v, err := p.parseUnary()
			return -v, err
		case '+':
			p.pos++
			return p.parseUnary()
		}
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("compare: unexpected end of expression")
	}

	if p.input[p.pos] == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("compare: missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	rest := p.input[p.pos:]
	if strings.HasPrefix(rest, "sqrt") {
		p.pos += len("sqrt")
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '(' {
			return 0, fmt.Errorf("compare: sqrt needs parentheses")
		}
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("compare: missing closing parenthesis")
		}
		p.pos++
		if v < 0 {
			return 0, fmt.Errorf("compare: sqrt of negative value")
		}
		return math.Sqrt(v), nil
	}
	if strings.HasPrefix(rest, "pi") {
		p.pos += len("pi")
		return math.Pi, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("compare: unexpected character %q", p.input[p.pos])
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("compare: bad number %q: %w", p.input[start:p.pos], err)
	}
	return v, nil
}
