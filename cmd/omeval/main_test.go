package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stellarlinkco/openmath-eval/internal/config"
)

func TestNewRootCmd_Wiring(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	if root.Use != "omeval" {
		t.Fatalf("use: got %q", root.Use)
	}
	if !root.SilenceErrors || !root.SilenceUsage {
		t.Fatalf("expected silenced errors and usage")
	}

	flag := root.PersistentFlags().Lookup("config")
	if flag == nil || flag.DefValue != config.DefaultPath {
		t.Fatalf("config flag: %#v", flag)
	}

	want := map[string]bool{"run": false, "report": false, "retrieve": false, "prompt": false, "kb": false, "list": false, "compare": false}
	for _, c := range root.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestCLIStateLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := strings.Join([]string{
		"llm:",
		"  default_provider: ollama",
		"  providers:",
		"    ollama:",
		"      base_url: http://ollama.test:11434",
		"      model: gemma2:9b",
		"",
	}, "\n")
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st := &cliState{configPath: cfgPath}
	if err := st.loadConfig(); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if st.cfg == nil || st.cfg.LLM.Providers["ollama"].Model != "gemma2:9b" {
		t.Fatalf("cfg: %+v", st.cfg)
	}

	missing := &cliState{configPath: filepath.Join(dir, "nope.yaml")}
	if err := missing.loadConfig(); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestMain_ExitsOnError(t *testing.T) {
	origExit := osExit
	origStderr := stderrWriter
	origArgs := os.Args
	t.Cleanup(func() {
		osExit = origExit
		stderrWriter = origStderr
		os.Args = origArgs
	})

	var code int
	var buf bytes.Buffer
	osExit = func(c int) { code = c }
	stderrWriter = &buf
	os.Args = []string{"omeval", "no-such-command"}

	main()

	if code != 1 {
		t.Fatalf("exit code: got %d want 1", code)
	}
	if !strings.Contains(buf.String(), "unknown command") {
		t.Fatalf("stderr: %q", buf.String())
	}
}
