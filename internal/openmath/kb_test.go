package openmath

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeKBFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"arith1.ocd": arithOCD,
		"arith1.sts": arithSTS,
		"empty.ocd":  `<CD><CDName>empty</CDName></CD>`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	return dir
}

func TestBuild_FlatLayout(t *testing.T) {
	dir := writeKBFixtures(t)

	kb, err := Build(context.Background(), dir, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(kb.ContentDictionaries) != 2 {
		t.Fatalf("dictionaries: got %d want %d", len(kb.ContentDictionaries), 2)
	}
	if len(kb.Symbols) != 2 {
		t.Fatalf("symbols: got %d want %d", len(kb.Symbols), 2)
	}

	gcd, ok := kb.Symbols["arith1:gcd"]
	if !ok {
		t.Fatalf("missing arith1:gcd (have %v)", kb.SortedSymbolIDs())
	}
	if gcd.TypeSignature != "nassoc(SemiGroup) -> SemiGroup" {
		t.Fatalf("type signature: got %q", gcd.TypeSignature)
	}
	if gcd.SymPyFunction != "sympy.gcd" {
		t.Fatalf("sympy function: got %q", gcd.SymPyFunction)
	}

	plus := kb.Symbols["arith1:plus"]
	if plus.SymPyFunction != "sympy.Add" {
		t.Fatalf("plus sympy: got %q", plus.SymPyFunction)
	}
	if plus.TypeSignature != "" {
		t.Fatalf("plus signature: got %q", plus.TypeSignature)
	}
}

func TestBuild_OfficialLayout(t *testing.T) {
	root := t.TempDir()
	official := filepath.Join(root, "cd", "Official")
	if err := os.MkdirAll(official, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	stsDir := filepath.Join(root, "sts")
	if err := os.MkdirAll(stsDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(official, "arith1.ocd"), []byte(arithOCD), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stsDir, "arith1.sts"), []byte(arithSTS), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	kb, err := Build(context.Background(), root, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := kb.Symbols["arith1:gcd"]; !ok {
		t.Fatalf("missing arith1:gcd")
	}
}

func TestBuild_NoFiles(t *testing.T) {
	_, err := Build(context.Background(), t.TempDir(), BuildOptions{})
	if err == nil || !strings.Contains(err.Error(), "no .ocd files") {
		t.Fatalf("error: got %v", err)
	}
}

func TestKnowledgeBase_SaveLoad(t *testing.T) {
	dir := writeKBFixtures(t)
	kb, err := Build(context.Background(), dir, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "kb", "openmath.json")
	if err := kb.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadKB(path)
	if err != nil {
		t.Fatalf("LoadKB: %v", err)
	}
	if loaded.Version != kbVersion || loaded.Source != kbSource {
		t.Fatalf("header: got %q %q", loaded.Version, loaded.Source)
	}
	if len(loaded.Symbols) != len(kb.Symbols) {
		t.Fatalf("symbols: got %d want %d", len(loaded.Symbols), len(kb.Symbols))
	}
	got := loaded.Symbols["arith1:gcd"]
	want := kb.Symbols["arith1:gcd"]
	if got.Description != want.Description || got.TypeSignature != want.TypeSignature {
		t.Fatalf("round trip: got %+v want %+v", got, want)
	}
}

func TestLoadKB_Missing(t *testing.T) {
	if _, err := LoadKB(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSymPyFunction(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"arith1:gcd", "sympy.gcd"},
		{"transc1:arcsin", "sympy.asin"},
		{"setname1:R", "sympy.Reals"},
		{"meta:CDName", ""},
	}
	for _, tt := range tests {
		if got := SymPyFunction(tt.id); got != tt.want {
			t.Fatalf("SymPyFunction(%q): got %q want %q", tt.id, got, tt.want)
		}
	}
	if !HasSymPyMapping("calculus1:diff") {
		t.Fatalf("calculus1:diff should be mapped")
	}
	if HasSymPyMapping("sts:mapsto") {
		t.Fatalf("sts:mapsto should not be mapped")
	}
}
