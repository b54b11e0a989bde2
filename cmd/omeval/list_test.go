package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/config"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

func TestListExperiments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "omeval.db")

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	exp := &store.ExperimentRecord{
		ID:            "exp_1",
		Model:         "gemma2:9b",
		Condition:     "openmath",
		Mode:          "greedy",
		Threshold:     0.5,
		StartedAt:     started,
		FinishedAt:    started.Add(time.Minute),
		TotalProblems: 4,
		CorrectCount:  3,
		AvgAttempts:   1.25,
	}
	if err := db.SaveExperiment(context.Background(), exp); err != nil {
		_ = db.Close()
		t.Fatalf("SaveExperiment: %v", err)
	}
	_ = db.Close()

	st := &cliState{cfg: &config.Config{
		Storage: config.StorageConfig{Type: "sqlite", Path: dbPath},
	}}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	if err := listExperiments(cmd, st, &listOptions{limit: 20}); err != nil {
		t.Fatalf("listExperiments: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ID") || !strings.Contains(out, "ACCURACY") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "exp_1") || !strings.Contains(out, "3/4 (75.0%)") {
		t.Fatalf("missing row: %q", out)
	}
	if !strings.Contains(out, "2026-03-14T09:30:00Z") {
		t.Fatalf("missing started column: %q", out)
	}
}

func TestListExperiments_FilterExcludes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "omeval.db")

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	exp := &store.ExperimentRecord{
		ID: "exp_1", Model: "gemma2:9b", Condition: "baseline", Mode: "greedy",
		StartedAt: started, FinishedAt: started.Add(time.Minute),
	}
	if err := db.SaveExperiment(context.Background(), exp); err != nil {
		_ = db.Close()
		t.Fatalf("SaveExperiment: %v", err)
	}
	_ = db.Close()

	st := &cliState{cfg: &config.Config{
		Storage: config.StorageConfig{Type: "sqlite", Path: dbPath},
	}}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	if err := listExperiments(cmd, st, &listOptions{condition: "openmath", limit: 20}); err != nil {
		t.Fatalf("listExperiments: %v", err)
	}
	if strings.Contains(buf.String(), "exp_1") {
		t.Fatalf("filter leaked row: %q", buf.String())
	}
}

func TestListExperiments_NilState(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	if err := listExperiments(cmd, nil, &listOptions{}); err == nil {
		t.Fatalf("expected nil state error")
	}
	if err := listExperiments(cmd, &cliState{}, &listOptions{}); err == nil {
		t.Fatalf("expected missing config error")
	}
}
