package prompt

import (
	"strings"

	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

// DefaultTrigger is the chain-of-thought trigger appended to problems
// for minimalist models.
const DefaultTrigger = `Please reason step by step, and put your final answer within \boxed{}.`

// System2Prompt instructs reflection-style models to follow a strict
// breakdown/plan/solve/verify process.
const System2Prompt = `You are an expert mathematician. Your goal is to solve challenging mathematical problems correctly.
Follow this strict process:
1. BREAKDOWN: Identify the core question and variables.
2. PLAN: Outline the steps to solve the problem.
3. SOLVE: Execute the steps carefully, showing all work.
4. VERIFY: Double-check your logic and calculations.
5. FORMAT: Put the final answer inside \boxed{}.`

// Strategy names how a model family is prompted.
type Strategy string

const (
	// StrategyMinimalistCoT keeps the system prompt bare and appends a
	// boxed-answer trigger to the problem. Math-tuned models degrade
	// with heavy instructions.
	StrategyMinimalistCoT Strategy = "minimalist_cot"

	// StrategySystem2Reflection wraps the problem in an explicit
	// reasoning protocol. Works better for general-purpose models.
	StrategySystem2Reflection Strategy = "system2_reflection"
)

// ModelConfig describes how to prompt a specific model.
type ModelConfig struct {
	UsesSystemPrompt bool
	Strategy         Strategy
	Trigger          string
}

var modelConfigs = map[string]ModelConfig{
	"johnnyboy/qwen2.5-math-7b:latest": {
		UsesSystemPrompt: true,
		Strategy:         StrategyMinimalistCoT,
		Trigger:          DefaultTrigger,
	},
	"gemma2:2b": {
		UsesSystemPrompt: true,
		Strategy:         StrategySystem2Reflection,
	},
	"gemma2:9b": {
		UsesSystemPrompt: true,
		Strategy:         StrategySystem2Reflection,
	},
}

// ConfigForModel returns the prompting configuration for a model.
// Unknown models get system2 reflection with a system prompt.
func ConfigForModel(model string) ModelConfig {
	if config, ok := modelConfigs[model]; ok {
		return config
	}
	return ModelConfig{UsesSystemPrompt: true, Strategy: StrategySystem2Reflection}
}

// BuildForModel builds the system and user prompts for a model, with an
// optional OpenMath context block.
func BuildForModel(model, problem, openmathContext string) (system, user string) {
	config := ConfigForModel(model)

	if config.Strategy == StrategyMinimalistCoT {
		trigger := config.Trigger
		if trigger == "" {
			trigger = DefaultTrigger
		}
		if config.UsesSystemPrompt {
			return openmathContext, problem + "\n\n" + trigger
		}
		var parts []string
		if openmathContext != "" {
			parts = append(parts, openmathContext)
		}
		parts = append(parts, problem, "\n"+trigger)
		return "", strings.Join(parts, "\n\n")
	}

	var parts []string
	if openmathContext != "" {
		parts = append(parts, openmathContext)
	}
	parts = append(parts, System2Prompt)
	return strings.Join(parts, "\n\n"), "Problem: " + problem
}

// maxContextProperties caps properties per symbol in injected context.
const maxContextProperties = 3

// FormatContext renders reranked symbols as the markdown block injected
// into prompts for the openmath condition.
func FormatContext(symbols []retrieval.RerankedSymbol, topK int) string {
	if len(symbols) == 0 {
		return ""
	}
	if topK > 0 && len(symbols) > topK {
		symbols = symbols[:topK]
	}

	lines := []string{"## Relevant Mathematical Definitions and Properties", ""}
	for _, sym := range symbols {
		lines = append(lines, "### "+sym.CD+":"+sym.Name)

		if desc := strings.Join(strings.Fields(sym.Description), " "); desc != "" {
			lines = append(lines, "**Description:** "+desc)
		}
		if len(sym.CMPProperties) > 0 {
			lines = append(lines, "**Properties:**")
			props := sym.CMPProperties
			if len(props) > maxContextProperties {
				props = props[:maxContextProperties]
			}
			for _, prop := range props {
				lines = append(lines, "  - "+prop)
			}
		}
		if len(sym.Examples) > 0 && sym.Examples[0] != "" {
			lines = append(lines, "**Example:** "+sym.Examples[0])
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
