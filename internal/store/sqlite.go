package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertExperimentStmt  *sql.Stmt
	insertProblemStmt     *sql.Stmt
	getExperimentStmt     *sql.Stmt
	problemsByExperiment  *sql.Stmt
	modelHistoryStmt      *sql.Stmt
	latestExperimentByKey *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			condition TEXT NOT NULL,
			mode TEXT NOT NULL,
			threshold REAL NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			total_problems INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			avg_attempts REAL NOT NULL,
			transcript_path TEXT,
			config_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS problem_results (
			id TEXT PRIMARY KEY,
			experiment_id TEXT NOT NULL,
			problem_id TEXT NOT NULL,
			level INTEGER NOT NULL,
			problem_type TEXT NOT NULL,
			ground_truth TEXT NOT NULL,
			predicted_answer TEXT NOT NULL,
			is_correct INTEGER NOT NULL,
			comparison_method TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			elapsed_seconds REAL NOT NULL,
			system_prompt TEXT,
			user_prompt TEXT,
			response TEXT,
			openmath_symbols BLOB,
			FOREIGN KEY(experiment_id) REFERENCES experiments(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_problem_results_experiment ON problem_results(experiment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_problem_results_problem ON problem_results(problem_id)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_model ON experiments(model, condition, mode)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_started_at ON experiments(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertExperimentStmt,
			query: `
				INSERT INTO experiments (
					id, model, condition, mode, threshold, started_at, finished_at,
					total_problems, correct_count, avg_attempts, transcript_path, config_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert experiment: %w",
		},
		{
			dst: &s.insertProblemStmt,
			query: `
				INSERT INTO problem_results (
					id, experiment_id, problem_id, level, problem_type, ground_truth,
					predicted_answer, is_correct, comparison_method, attempts, elapsed_seconds,
					system_prompt, user_prompt, response, openmath_symbols
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert problem result: %w",
		},
		{
			dst: &s.getExperimentStmt,
			query: `
				SELECT id, model, condition, mode, threshold, started_at, finished_at,
					total_problems, correct_count, avg_attempts, transcript_path, config_json
				FROM experiments WHERE id = ?
			`,
			errFmt: "store: prepare get experiment: %w",
		},
		{
			dst: &s.problemsByExperiment,
			query: `
				SELECT id, experiment_id, problem_id, level, problem_type, ground_truth,
					predicted_answer, is_correct, comparison_method, attempts, elapsed_seconds,
					system_prompt, user_prompt, response, openmath_symbols
				FROM problem_results
				WHERE experiment_id = ?
				ORDER BY problem_id ASC
			`,
			errFmt: "store: prepare get problem results: %w",
		},
		{
			dst: &s.modelHistoryStmt,
			query: `
				SELECT id, model, condition, mode, threshold, started_at, finished_at,
					total_problems, correct_count, avg_attempts, transcript_path, config_json
				FROM experiments
				WHERE model = ?
				ORDER BY started_at DESC
				LIMIT ?
			`,
			errFmt: "store: prepare model history: %w",
		},
		{
			dst: &s.latestExperimentByKey,
			query: `
				SELECT id FROM experiments
				WHERE model = ? AND condition = ? AND mode = ? AND threshold = ?
				ORDER BY started_at DESC
				LIMIT 1
			`,
			errFmt: "store: prepare latest experiment: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertExperimentStmt,
		s.insertProblemStmt,
		s.getExperimentStmt,
		s.problemsByExperiment,
		s.modelHistoryStmt,
		s.latestExperimentByKey,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveExperiment persists an experiment summary.
func (s *SQLiteStore) SaveExperiment(ctx context.Context, exp *ExperimentRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if exp == nil {
		return errors.New("store: nil experiment")
	}

	id := strings.TrimSpace(exp.ID)
	if id == "" {
		return errors.New("store: empty experiment id")
	}
	if strings.TrimSpace(exp.Model) == "" {
		return errors.New("store: empty model")
	}
	if exp.StartedAt.IsZero() || exp.FinishedAt.IsZero() {
		return errors.New("store: missing experiment timestamps")
	}

	cfgJSON := []byte("null")
	if exp.Config != nil {
		var err error
		cfgJSON, err = json.Marshal(exp.Config)
		if err != nil {
			return fmt.Errorf("store: marshal experiment config: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin experiment tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertExperimentStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		exp.Model,
		exp.Condition,
		exp.Mode,
		exp.Threshold,
		exp.StartedAt.UTC().UnixMilli(),
		exp.FinishedAt.UTC().UnixMilli(),
		exp.TotalProblems,
		exp.CorrectCount,
		exp.AvgAttempts,
		exp.TranscriptPath,
		string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert experiment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit experiment: %w", err)
	}
	return nil
}

// SaveProblemResults persists all problem results for an experiment in
// one transaction.
func (s *SQLiteStore) SaveProblemResults(ctx context.Context, experimentID string, results []*ProblemRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		return errors.New("store: empty experiment id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin problem results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertProblemStmt)
	defer stmt.Close()

	for _, r := range results {
		if r == nil {
			return errors.New("store: nil problem result")
		}
		if strings.TrimSpace(r.ProblemID) == "" {
			return errors.New("store: empty problem id")
		}

		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = experimentID + ":" + r.ProblemID
		}

		symbolsJSON, err := json.Marshal(r.OpenMathSymbols)
		if err != nil {
			return fmt.Errorf("store: marshal symbols: %w", err)
		}

		_, err = stmt.ExecContext(
			ctx,
			id,
			experimentID,
			r.ProblemID,
			r.Level,
			r.ProblemType,
			r.GroundTruth,
			r.PredictedAnswer,
			r.IsCorrect,
			r.ComparisonMethod,
			r.Attempts,
			r.ElapsedSeconds,
			r.SystemPrompt,
			r.UserPrompt,
			r.Response,
			symbolsJSON,
		)
		if err != nil {
			return fmt.Errorf("store: insert problem result %q: %w", r.ProblemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit problem results: %w", err)
	}
	return nil
}

// GetExperiment loads an experiment by id.
func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*ExperimentRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty experiment id")
	}

	row := s.getExperimentStmt.QueryRowContext(ctx, id)
	exp, err := scanExperimentRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get experiment: %w", err)
	}
	return exp, nil
}

// ListExperiments returns experiments matching the filter, newest
// first.
func (s *SQLiteStore) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]*ExperimentRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, model, condition, mode, threshold, started_at, finished_at,
		total_problems, correct_count, avg_attempts, transcript_path, config_json
		FROM experiments WHERE 1=1`)

	var args []any
	if model := strings.TrimSpace(filter.Model); model != "" {
		sb.WriteString(` AND model = ?`)
		args = append(args, model)
	}
	if condition := strings.TrimSpace(filter.Condition); condition != "" {
		sb.WriteString(` AND condition = ?`)
		args = append(args, condition)
	}
	if mode := strings.TrimSpace(filter.Mode); mode != "" {
		sb.WriteString(` AND mode = ?`)
		args = append(args, mode)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list experiments: %w", err)
	}
	defer rows.Close()
	return scanExperimentRows(rows)
}

// GetProblemResults lists problem results for an experiment in problem
// ID order.
func (s *SQLiteStore) GetProblemResults(ctx context.Context, experimentID string) ([]*ProblemRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		return nil, errors.New("store: empty experiment id")
	}

	rows, err := s.problemsByExperiment.QueryContext(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("store: get problem results: %w", err)
	}
	defer rows.Close()

	return scanProblemRows(rows)
}

// GetModelHistory returns recent experiments for a model.
func (s *SQLiteStore) GetModelHistory(ctx context.Context, model string, limit int) ([]*ExperimentRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("store: empty model")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.modelHistoryStmt.QueryContext(ctx, model, limit)
	if err != nil {
		return nil, fmt.Errorf("store: model history: %w", err)
	}
	defer rows.Close()

	return scanExperimentRows(rows)
}

// GetConditionComparison pairs the latest baseline and openmath
// experiments for a model/mode/threshold and diffs their per-problem
// outcomes.
func (s *SQLiteStore) GetConditionComparison(ctx context.Context, model, mode string, threshold float64) (*ConditionComparison, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	model = strings.TrimSpace(model)
	mode = strings.TrimSpace(mode)
	if model == "" || mode == "" {
		return nil, errors.New("store: missing model/mode")
	}

	baselineID, err := s.latestExperimentID(ctx, model, "baseline", mode, threshold)
	if err != nil {
		return nil, err
	}
	openmathID, err := s.latestExperimentID(ctx, model, "openmath", mode, threshold)
	if err != nil {
		return nil, err
	}

	baselineResults, err := s.GetProblemResults(ctx, baselineID)
	if err != nil {
		return nil, err
	}
	openmathResults, err := s.GetProblemResults(ctx, openmathID)
	if err != nil {
		return nil, err
	}

	regressions, improvements := compareProblemOutcomes(baselineResults, openmathResults)

	return &ConditionComparison{
		Model:           model,
		Mode:            mode,
		Threshold:       threshold,
		BaselineID:      baselineID,
		OpenMathID:      openmathID,
		BaselineResults: baselineResults,
		OpenMathResults: openmathResults,
		Regressions:     regressions,
		Improvements:    improvements,
	}, nil
}

func (s *SQLiteStore) latestExperimentID(ctx context.Context, model, condition, mode string, threshold float64) (string, error) {
	row := s.latestExperimentByKey.QueryRowContext(ctx, model, condition, mode, threshold)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("store: no %s experiments for model %q mode %q threshold %g: %w", condition, model, mode, threshold, sql.ErrNoRows)
		}
		return "", fmt.Errorf("store: latest experiment id: %w", err)
	}
	return id, nil
}

func scanExperimentRow(scan func(dest ...any) error) (*ExperimentRecord, error) {
	var (
		id             string
		model          string
		condition      string
		mode           string
		threshold      float64
		startedAtMS    int64
		finishedAtMS   int64
		totalProblems  int
		correctCount   int
		avgAttempts    float64
		transcriptPath sql.NullString
		cfgJSON        sql.NullString
	)
	if err := scan(&id, &model, &condition, &mode, &threshold, &startedAtMS, &finishedAtMS,
		&totalProblems, &correctCount, &avgAttempts, &transcriptPath, &cfgJSON); err != nil {
		return nil, err
	}

	cfg, err := decodeConfig(cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("store: decode experiment config: %w", err)
	}

	return &ExperimentRecord{
		ID:             id,
		Model:          model,
		Condition:      condition,
		Mode:           mode,
		Threshold:      threshold,
		StartedAt:      time.UnixMilli(startedAtMS).UTC(),
		FinishedAt:     time.UnixMilli(finishedAtMS).UTC(),
		TotalProblems:  totalProblems,
		CorrectCount:   correctCount,
		AvgAttempts:    avgAttempts,
		TranscriptPath: transcriptPath.String,
		Config:         cfg,
	}, nil
}

func scanExperimentRows(rows *sql.Rows) ([]*ExperimentRecord, error) {
	var out []*ExperimentRecord
	for rows.Next() {
		exp, err := scanExperimentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan experiment: %w", err)
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan experiment rows: %w", err)
	}
	return out, nil
}

func scanProblemRows(rows *sql.Rows) ([]*ProblemRecord, error) {
	var out []*ProblemRecord
	for rows.Next() {
		var (
			id               string
			experimentID     string
			problemID        string
			level            int
			problemType      string
			groundTruth      string
			predictedAnswer  string
			isCorrect        bool
			comparisonMethod string
			attempts         int
			elapsedSeconds   float64
			systemPrompt     sql.NullString
			userPrompt       sql.NullString
			response         sql.NullString
			symbolsJSON      []byte
		)
		if err := rows.Scan(
			&id,
			&experimentID,
			&problemID,
			&level,
			&problemType,
			&groundTruth,
			&predictedAnswer,
			&isCorrect,
			&comparisonMethod,
			&attempts,
			&elapsedSeconds,
			&systemPrompt,
			&userPrompt,
			&response,
			&symbolsJSON,
		); err != nil {
			return nil, fmt.Errorf("store: scan problem result: %w", err)
		}

		symbols, err := decodeSymbols(symbolsJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode symbols: %w", err)
		}

		out = append(out, &ProblemRecord{
			ID:               id,
			ExperimentID:     experimentID,
			ProblemID:        problemID,
			Level:            level,
			ProblemType:      problemType,
			GroundTruth:      groundTruth,
			PredictedAnswer:  predictedAnswer,
			IsCorrect:        isCorrect,
			ComparisonMethod: comparisonMethod,
			Attempts:         attempts,
			ElapsedSeconds:   elapsedSeconds,
			SystemPrompt:     systemPrompt.String,
			UserPrompt:       userPrompt.String,
			Response:         response.String,
			OpenMathSymbols:  symbols,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan problem rows: %w", err)
	}
	return out, nil
}

func decodeConfig(cfgJSON sql.NullString) (map[string]any, error) {
	if !cfgJSON.Valid {
		return nil, nil
	}
	raw := strings.TrimSpace(cfgJSON.String)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeSymbols(symbolsJSON []byte) ([]string, error) {
	if len(symbolsJSON) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(symbolsJSON, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compareProblemOutcomes(baseline, openmath []*ProblemRecord) ([]string, []string) {
	baselineCorrect := make(map[string]bool)
	for _, r := range baseline {
		baselineCorrect[r.ProblemID] = r.IsCorrect
	}
	openmathCorrect := make(map[string]bool)
	for _, r := range openmath {
		openmathCorrect[r.ProblemID] = r.IsCorrect
	}

	var regressions []string
	var improvements []string
	for problemID, wasCorrect := range baselineCorrect {
		nowCorrect, ok := openmathCorrect[problemID]
		if !ok {
			continue
		}
		if wasCorrect && !nowCorrect {
			regressions = append(regressions, problemID)
		}
		if !wasCorrect && nowCorrect {
			improvements = append(improvements, problemID)
		}
	}

	sort.Strings(regressions)
	sort.Strings(improvements)
	return regressions, improvements
}
