package openmath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	kbVersion = "1.0.0"
	kbSource  = "OpenMath Content Dictionaries"
)

// BuildOptions controls which Content Dictionaries a build includes.
type BuildOptions struct {
	// IncludeExperimental also parses CDs under cd/experimental.
	IncludeExperimental bool
}

// Build parses every .ocd file under cdsDir into a knowledge base. The
// expected layout is the openmath-cds repository (cd/Official, optionally
// cd/experimental, and sts/ for type signatures); a flat directory of .ocd
// files next to their .sts files also works. Unparseable files are skipped.
func Build(ctx context.Context, cdsDir string, opts BuildOptions) (*KnowledgeBase, error) {
	if ctx == nil {
		return nil, errors.New("openmath: nil context")
	}

	ocdFiles, stsDir, err := locateCDs(cdsDir, opts)
	if err != nil {
		return nil, err
	}
	if len(ocdFiles) == 0 {
		return nil, fmt.Errorf("openmath: no .ocd files under %q", cdsDir)
	}
	sort.Strings(ocdFiles)

	kb := &KnowledgeBase{
		Version:             kbVersion,
		Source:              kbSource,
		ContentDictionaries: make(map[string]ContentDictionary),
		Symbols:             make(map[string]Symbol),
	}

	for _, path := range ocdFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cd, symbols, err := ParseOCD(path)
		if err != nil {
			continue
		}
		kb.ContentDictionaries[cd.Name] = cd

		signatures := map[string]string{}
		stsPath := filepath.Join(stsDir, cd.Name+".sts")
		if _, statErr := os.Stat(stsPath); statErr == nil {
			if sigs, sigErr := ParseSTS(stsPath); sigErr == nil {
				signatures = sigs
			}
		}

		for _, sym := range symbols {
			if sig, ok := signatures[sym.Name]; ok {
				sym.TypeSignature = sig
			}
			sym.SymPyFunction = SymPyFunction(sym.ID)
			kb.Symbols[sym.ID] = sym
		}
	}

	return kb, nil
}

func locateCDs(cdsDir string, opts BuildOptions) (ocdFiles []string, stsDir string, err error) {
	official := filepath.Join(cdsDir, "cd", "Official")
	if _, statErr := os.Stat(official); statErr == nil {
		ocdFiles, err = filepath.Glob(filepath.Join(official, "*.ocd"))
		if err != nil {
			return nil, "", fmt.Errorf("openmath: scan %q: %w", official, err)
		}
		if opts.IncludeExperimental {
			experimental := filepath.Join(cdsDir, "cd", "experimental")
			extra, globErr := filepath.Glob(filepath.Join(experimental, "*.ocd"))
			if globErr == nil {
				ocdFiles = append(ocdFiles, extra...)
			}
		}
		return ocdFiles, filepath.Join(cdsDir, "sts"), nil
	}

	// Flat layout: .ocd and .sts files side by side.
	ocdFiles, err = filepath.Glob(filepath.Join(cdsDir, "*.ocd"))
	if err != nil {
		return nil, "", fmt.Errorf("openmath: scan %q: %w", cdsDir, err)
	}
	return ocdFiles, cdsDir, nil
}

// Save writes the knowledge base as indented JSON.
func (kb *KnowledgeBase) Save(path string) error {
	if kb == nil {
		return errors.New("openmath: nil knowledge base")
	}

	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return fmt.Errorf("openmath: encode knowledge base: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("openmath: create %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("openmath: write knowledge base: %w", err)
	}
	return nil
}

// LoadKB reads a knowledge base previously written by Save.
func LoadKB(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("openmath: read knowledge base: %w", err)
	}

	var kb KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("openmath: parse knowledge base %q: %w", path, err)
	}
	if kb.Symbols == nil {
		kb.Symbols = map[string]Symbol{}
	}
	if kb.ContentDictionaries == nil {
		kb.ContentDictionaries = map[string]ContentDictionary{}
	}
	return &kb, nil
}

// SortedSymbolIDs returns every symbol ID in lexical order.
func (kb *KnowledgeBase) SortedSymbolIDs() []string {
	if kb == nil {
		return nil
	}
	ids := make([]string, 0, len(kb.Symbols))
	for id := range kb.Symbols {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
