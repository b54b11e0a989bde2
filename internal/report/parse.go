package report

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// Metadata is the experiment header parsed from a transcript.
type Metadata struct {
	Condition   string
	Mode        string
	Model       string
	Date        string
	NProblems   int
	MaxTokens   int
	MaxAttempts int
	Temperature float64
	TopKSymbols int
	Seed        int64
}

// ProblemResult is the per-problem outcome parsed from a transcript.
type ProblemResult struct {
	ProblemID   string
	Level       int
	ProblemType string
	IsCorrect   bool
	Attempts    int
}

// Transcript is a parsed experiment transcript.
type Transcript struct {
	Metadata Metadata
	Results  map[string]ProblemResult
}

var (
	conditionRe   = regexp.MustCompile(`\*\*Condition\*\*:\s*(\w+)`)
	modeRe        = regexp.MustCompile(`\*\*Mode\*\*:\s*(\S+)`)
	modelRe       = regexp.MustCompile(`(?m)\*\*Model\*\*:\s*(.+?)$`)
	dateRe        = regexp.MustCompile(`(?m)\*\*Date\*\*:\s*(.+?)$`)
	nProblemsRe   = regexp.MustCompile(`Number of problems:\s*(\d+)`)
	maxTokensRe   = regexp.MustCompile(`Max tokens:\s*(\d+)`)
	maxAttemptsRe = regexp.MustCompile(`Max attempts:\s*(\d+)`)
	temperatureRe = regexp.MustCompile(`Temperature:\s*([\d.]+)`)
	topKRe        = regexp.MustCompile(`Top K symbols:\s*(\d+)`)
	seedRe        = regexp.MustCompile(`Seed:\s*(\d+)`)

	problemRe  = regexp.MustCompile(`## Problem (math_\d+)\s*\n\s*Level:\s*(\d+)\s*\n\s*Type:\s*(\S+)\s*\n`)
	responseRe = regexp.MustCompile(`(?s)## Response (math_\d+)\s*\n\s*Attempt:\s*(\d+)\s*\n\s*Answer:.*?\n\s*Is Correct:\s*(True|False)`)
)

// ParseTranscriptFile parses a transcript from disk.
func ParseTranscriptFile(path string) (*Transcript, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read transcript: %w", err)
	}
	return ParseTranscript(string(content)), nil
}

// ParseTranscript extracts the header metadata and per-problem results
// from transcript markdown. Missing header fields fall back to zero
// values with "unknown" strings.
func ParseTranscript(content string) *Transcript {
	meta := Metadata{
		Condition: "unknown",
		Mode:      "unknown",
		Model:     "unknown",
		Date:      "unknown",
	}
	if m := conditionRe.FindStringSubmatch(content); m != nil {
		meta.Condition = m[1]
	}
	if m := modeRe.FindStringSubmatch(content); m != nil {
		meta.Mode = m[1]
	}
	if m := modelRe.FindStringSubmatch(content); m != nil {
		meta.Model = trimCR(m[1])
	}
	if m := dateRe.FindStringSubmatch(content); m != nil {
		meta.Date = trimCR(m[1])
	}
	if m := nProblemsRe.FindStringSubmatch(content); m != nil {
		meta.NProblems, _ = strconv.Atoi(m[1])
	}
	if m := maxTokensRe.FindStringSubmatch(content); m != nil {
		meta.MaxTokens, _ = strconv.Atoi(m[1])
	}
	if m := maxAttemptsRe.FindStringSubmatch(content); m != nil {
		meta.MaxAttempts, _ = strconv.Atoi(m[1])
	}
	if m := temperatureRe.FindStringSubmatch(content); m != nil {
		meta.Temperature, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := topKRe.FindStringSubmatch(content); m != nil {
		meta.TopKSymbols, _ = strconv.Atoi(m[1])
	}
	if m := seedRe.FindStringSubmatch(content); m != nil {
		meta.Seed, _ = strconv.ParseInt(m[1], 10, 64)
	}

	type problemMeta struct {
		level int
		ptype string
	}
	problems := map[string]problemMeta{}
	for _, m := range problemRe.FindAllStringSubmatch(content, -1) {
		level, _ := strconv.Atoi(m[2])
		problems[m[1]] = problemMeta{level: level, ptype: m[3]}
	}

	results := map[string]ProblemResult{}
	for _, m := range responseRe.FindAllStringSubmatch(content, -1) {
		id := m[1]
		pm, ok := problems[id]
		if !ok {
			continue
		}
		attempts, _ := strconv.Atoi(m[2])
		results[id] = ProblemResult{
			ProblemID:   id,
			Level:       pm.level,
			ProblemType: pm.ptype,
			IsCorrect:   m[3] == "True",
			Attempts:    attempts,
		}
	}

	return &Transcript{Metadata: meta, Results: results}
}

func trimCR(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
