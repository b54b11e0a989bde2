// Package prompt composes model prompts, optionally augmented with
// retrieved OpenMath symbol definitions.
package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/openmath-eval/internal/openmath"
)

// ConditionConfig controls which symbol fields a condition injects.
type ConditionConfig struct {
	Name                    string `yaml:"name"`
	Description             string `yaml:"description"`
	IncludeDefinitions      bool   `yaml:"include_definitions"`
	IncludeTypes            bool   `yaml:"include_types"`
	IncludeProperties       bool   `yaml:"include_properties"`
	IncludeSymPy            bool   `yaml:"include_sympy"`
	IncludeCodeInstructions bool   `yaml:"include_code_instructions"`
}

type conditionTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type templatesFile struct {
	Conditions   map[string]ConditionConfig   `yaml:"conditions"`
	Templates    map[string]conditionTemplate `yaml:"templates"`
	SymPySection string                       `yaml:"sympy_section"`
}

// Composed is a prompt ready for inference.
type Composed struct {
	Condition        string
	SystemPrompt     string
	UserPrompt       string
	Problem          string
	RetrievedSymbols []string
}

// SinglePrompt flattens the prompt into one string.
func (c Composed) SinglePrompt(includeSystem bool) string {
	if includeSystem && c.SystemPrompt != "" {
		return c.SystemPrompt + "\n\n" + c.UserPrompt
	}
	return c.UserPrompt
}

// Builder renders condition-specific prompts from a template file.
type Builder struct {
	conditions   map[string]ConditionConfig
	templates    map[string]conditionTemplate
	sympySection string
}

// NewBuilder loads prompt templates from a YAML file.
func NewBuilder(templatesPath string) (*Builder, error) {
	raw, err := os.ReadFile(templatesPath)
	if err != nil {
		return nil, fmt.Errorf("prompt: read templates: %w", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("prompt: parse templates %q: %w", templatesPath, err)
	}
	if len(file.Conditions) == 0 {
		return nil, fmt.Errorf("prompt: no conditions in %q", templatesPath)
	}

	return &Builder{
		conditions:   file.Conditions,
		templates:    file.Templates,
		sympySection: file.SymPySection,
	}, nil
}

// Conditions returns the available condition names, sorted.
func (b *Builder) Conditions() []string {
	names := make([]string, 0, len(b.conditions))
	for name := range b.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConditionConfig returns the configuration for a condition.
func (b *Builder) ConditionConfig(condition string) (ConditionConfig, bool) {
	config, ok := b.conditions[condition]
	return config, ok
}

// Build composes a prompt for the problem under the given condition.
func (b *Builder) Build(problem string, symbols []openmath.Symbol, condition string) (Composed, error) {
	config, ok := b.conditions[condition]
	if !ok {
		return Composed{}, fmt.Errorf("prompt: unknown condition %q (available: %s)",
			condition, strings.Join(b.Conditions(), ", "))
	}
	template := b.templates[condition]

	context := b.formatSymbols(symbols, config)

	sympyFunctions := ""
	if config.IncludeSymPy {
		sympyFunctions = b.formatSymPyFunctions(symbols)
	}

	replacer := strings.NewReplacer(
		"{openmath_context}", context,
		"{sympy_functions}", sympyFunctions,
	)
	system := strings.TrimSpace(replacer.Replace(template.System))

	userTemplate := template.User
	if userTemplate == "" {
		userTemplate = "Problem: {problem}\n\nSolution:"
	}
	user := strings.TrimSpace(strings.ReplaceAll(userTemplate, "{problem}", problem))

	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		ids = append(ids, sym.ID)
	}

	return Composed{
		Condition:        condition,
		SystemPrompt:     system,
		UserPrompt:       user,
		Problem:          problem,
		RetrievedSymbols: ids,
	}, nil
}

func (b *Builder) formatSymbols(symbols []openmath.Symbol, config ConditionConfig) string {
	if !config.IncludeDefinitions {
		return ""
	}
	if len(symbols) == 0 {
		return "(No relevant mathematical definitions found.)"
	}

	formatted := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		formatted = append(formatted, formatSymbol(sym, config))
	}
	return strings.Join(formatted, "\n\n")
}

func formatSymbol(sym openmath.Symbol, config ConditionConfig) string {
	description := sym.Description
	if description == "" {
		description = "No description available."
	}
	description = strings.Join(strings.Fields(description), " ")

	lines := []string{
		"### " + sym.ID,
		"**Description:** " + description,
	}
	if config.IncludeTypes && sym.TypeSignature != "" {
		lines = append(lines, "**Type:** "+sym.TypeSignature)
	}
	if config.IncludeProperties && len(sym.CMPProperties) > 0 {
		lines = append(lines, "**Properties:**")
		for _, prop := range sym.CMPProperties {
			lines = append(lines, "  - "+strings.Join(strings.Fields(prop), " "))
		}
	}
	if config.IncludeSymPy && sym.SymPyFunction != "" {
		lines = append(lines, "**SymPy:** `"+sym.SymPyFunction+"`")
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) formatSymPyFunctions(symbols []openmath.Symbol) string {
	var functions []string
	for _, sym := range symbols {
		if sym.SymPyFunction != "" {
			functions = append(functions, fmt.Sprintf("- `%s` (%s)", sym.SymPyFunction, sym.ID))
		}
	}
	if len(functions) == 0 {
		return "(No SymPy functions available for retrieved symbols.)"
	}
	return strings.ReplaceAll(b.sympySection, "{function_list}", strings.Join(functions, "\n"))
}
