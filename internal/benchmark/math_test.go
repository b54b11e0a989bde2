package benchmark

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJSONL(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "math.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMATH(t *testing.T) {
	t.Setenv("OPENMATH_EVAL_MATH_PATH", "")

	path := writeJSONL(t, []string{
		`{"problem": "What is $2+2$?", "solution": "We add: $\\boxed{4}$.", "level": "Level 1", "type": "Prealgebra"}`,
		`{"id": "math_00042", "problem": "Find $x$.", "answer": "3", "level": 4, "subject": "Algebra"}`,
		`{"problem": "   "}`,
		``,
	})

	ds, err := LoadMATH(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadMATH: %v", err)
	}
	if len(ds.Problems) != 2 {
		t.Fatalf("problems: got %d want %d", len(ds.Problems), 2)
	}

	p0 := ds.Problems[0]
	if p0.ID != "math_00000" {
		t.Fatalf("id: got %q", p0.ID)
	}
	if p0.Answer != "4" {
		t.Fatalf("boxed answer: got %q", p0.Answer)
	}
	if p0.Level != 1 {
		t.Fatalf("level: got %d", p0.Level)
	}
	if p0.Type != "prealgebra" {
		t.Fatalf("type: got %q", p0.Type)
	}

	p1 := ds.Problems[1]
	if p1.ID != "math_00042" {
		t.Fatalf("explicit id: got %q", p1.ID)
	}
	if p1.Level != 4 || p1.Type != "algebra" || p1.Answer != "3" {
		t.Fatalf("row 1: got %+v", p1)
	}
}

func TestLoadMATH_MissingFileFallsBackToSample(t *testing.T) {
	t.Setenv("OPENMATH_EVAL_MATH_PATH", "")

	ds, err := LoadMATH(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("LoadMATH: %v", err)
	}
	if len(ds.Problems) == 0 {
		t.Fatalf("expected built-in sample")
	}
	for _, p := range ds.Problems {
		if p.Answer == "" {
			t.Fatalf("sample problem %s missing answer", p.ID)
		}
	}
}

func TestLoadMATH_EnvOverride(t *testing.T) {
	path := writeJSONL(t, []string{
		`{"problem": "env", "answer": "1", "level": 2, "type": "geometry"}`,
	})
	t.Setenv("OPENMATH_EVAL_MATH_PATH", path)

	ds, err := LoadMATH(context.Background(), "ignored.jsonl")
	if err != nil {
		t.Fatalf("LoadMATH: %v", err)
	}
	if len(ds.Problems) != 1 || ds.Problems[0].Problem != "env" {
		t.Fatalf("problems: got %+v", ds.Problems)
	}
}

func TestLoadMATH_ParseError(t *testing.T) {
	t.Setenv("OPENMATH_EVAL_MATH_PATH", "")
	path := writeJSONL(t, []string{`{not json}`})

	_, err := LoadMATH(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "benchmark: load") {
		t.Fatalf("error: got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`3`, 3},
		{`"Level 5"`, 5},
		{`"Level ?"`, 0},
		{`"5"`, 5},
		{`null`, 0},
	}
	for _, tt := range tests {
		if got := parseLevel(json.RawMessage(tt.raw)); got != tt.want {
			t.Fatalf("parseLevel(%s): got %d want %d", tt.raw, got, tt.want)
		}
	}
	if got := parseLevel(nil); got != 0 {
		t.Fatalf("parseLevel(nil): got %d", got)
	}
}

func TestLastBoxed(t *testing.T) {
	if got := lastBoxed(`First $\boxed{1}$ then $\boxed{\frac{2}{3}}$.`); got != `\frac{2}{3}` {
		t.Fatalf("got %q", got)
	}
	if got := lastBoxed("no boxes here"); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestFilterByLevelAndType(t *testing.T) {
	ds := &Dataset{Problems: []Problem{
		{ID: "a", Level: 1, Type: "algebra"},
		{ID: "b", Level: 2, Type: "geometry"},
		{ID: "c", Level: 1, Type: "geometry"},
	}}

	byLevel := ds.FilterByLevel(1)
	if len(byLevel.Problems) != 2 {
		t.Fatalf("by level: got %d", len(byLevel.Problems))
	}

	byType := ds.FilterByType("Geometry")
	if len(byType.Problems) != 2 {
		t.Fatalf("by type: got %d", len(byType.Problems))
	}

	both := ds.FilterByLevel(1).FilterByType("geometry")
	if len(both.Problems) != 1 || both.Problems[0].ID != "c" {
		t.Fatalf("chained: got %+v", both.Problems)
	}

	all := ds.FilterByLevel()
	if len(all.Problems) != 3 {
		t.Fatalf("no filter: got %d", len(all.Problems))
	}
}

func TestStatistics(t *testing.T) {
	ds := &Dataset{Problems: []Problem{
		{Level: 1, Type: "algebra"},
		{Level: 1, Type: "geometry"},
		{Level: 3, Type: "algebra"},
	}}
	stats := ds.Statistics()
	if stats.Total != 3 {
		t.Fatalf("total: got %d", stats.Total)
	}
	if stats.ByLevel[1] != 2 || stats.ByLevel[3] != 1 {
		t.Fatalf("by level: got %v", stats.ByLevel)
	}
	if stats.ByType["algebra"] != 2 || stats.ByType["geometry"] != 1 {
		t.Fatalf("by type: got %v", stats.ByType)
	}
}
