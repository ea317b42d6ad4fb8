package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Storage keeps expanded benchmark plans in a turso database, or in a local
// sqlite file when LocalPath is set.
type Storage struct {
	OrgName   string
	GroupName string
	ApiToken  string
	AuthToken string
	LocalPath string
}

type PlannedBenchmark struct {
	SequenceID            string
	Position              int
	Name                  string
	UniqueName            string
	Descriptor            string
	DataSource            string
	Queries               []string
	Runs                  int
	PrewarmRuns           int
	Concurrency           int
	BeforeBenchmarkMacros []string
	AfterBenchmarkMacros  []string
	BeforeExecutionMacros []string
	AfterExecutionMacros  []string
	Variables             map[string]string
}

func NewStorage(cfg StorageConfig) *Storage {
	return &Storage{
		OrgName:   cfg.OrgName,
		GroupName: cfg.GroupName,
		ApiToken:  cfg.ApiToken,
		AuthToken: cfg.AuthToken,
		LocalPath: cfg.LocalPath,
	}
}

// CreateDatabase provisions a turso database through the platform api; local
// sqlite files are created on first connection instead.
func (s *Storage) CreateDatabase(name string) error {
	if s.LocalPath != "" {
		return nil
	}
	url := fmt.Sprintf("https://api.turso.tech/v1/organizations/%v/databases", s.OrgName)
	req, err := http.NewRequest("POST", url, bytes.NewReader([]byte(fmt.Sprintf(`{"name":"%v","group":"%v"}`, name, s.GroupName))))
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+s.ApiToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status code %v: %v", resp.StatusCode, string(body))
	}
	Logger.Infof("created database %v", name)
	return nil
}

func (s *Storage) ConnectDb(name string) (*sql.DB, error) {
	if s.LocalPath != "" {
		return sql.Open("sqlite3", filepath.Join(s.LocalPath, name+".db"))
	}
	url := fmt.Sprintf("libsql://%v-%v.turso.io?authToken=%v", name, s.OrgName, s.AuthToken)
	return sql.Open("libsql", url)
}

func (s *Storage) DbLink(name string) string {
	if s.LocalPath != "" {
		return filepath.Join(s.LocalPath, name+".db")
	}
	return fmt.Sprintf("%v-%v.turso.io", name, s.OrgName)
}

func (s *Storage) InitPlanDb(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS parameters (
		sequence_id TEXT,
		name TEXT,
		value,
		PRIMARY KEY (sequence_id, name)
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS plans (
		sequence_id TEXT,
		position INTEGER,
		name TEXT,
		unique_name TEXT,
		descriptor TEXT,
		data_source TEXT,
		queries TEXT,
		runs INTEGER,
		prewarm_runs INTEGER,
		concurrency INTEGER,
		before_benchmark TEXT,
		after_benchmark TEXT,
		before_execution TEXT,
		after_execution TEXT,
		variables TEXT,
		PRIMARY KEY (sequence_id, name)
	)`)
	if err != nil {
		return err
	}
	return nil
}

func (s *Storage) AddParameters(db *sql.DB, sequenceID string, meta map[string]any) error {
	parameters := make([]any, 0)
	parameters = append(parameters, sequenceID, "time", time.Now().Format("2006-01-02 15:04:05"))
	for _, key := range slices.Sorted(maps.Keys(meta)) {
		parameters = append(parameters, sequenceID, key, fmt.Sprintf("%v", meta[key]))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?, ?)"}, len(parameters)/3), ", ")
	_, err := db.Exec(
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	if err != nil {
		return err
	}
	Logger.Infof("stored %v plan parameters for sequence %v", len(meta)+1, sequenceID)
	return nil
}

func (s *Storage) Parameters(db *sql.DB, sequenceID string) (map[string]string, error) {
	rows, err := db.Query("SELECT name, value FROM parameters WHERE sequence_id = ?", sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make(map[string]string, 0)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		results[name] = value
	}
	return results, rows.Err()
}

func encodeJson(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func (s *Storage) AddPlan(ctx context.Context, db *sql.DB, benchmarks []*Benchmark) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for position, benchmark := range benchmarks {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO plans VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING",
			benchmark.SequenceID,
			position,
			benchmark.Name,
			benchmark.UniqueName,
			benchmark.Descriptor,
			benchmark.DataSource,
			encodeJson(benchmark.QueryNames()),
			benchmark.Runs,
			benchmark.PrewarmRuns,
			benchmark.Concurrency,
			encodeJson(benchmark.BeforeBenchmarkMacros),
			encodeJson(benchmark.AfterBenchmarkMacros),
			encodeJson(benchmark.BeforeExecutionMacros),
			encodeJson(benchmark.AfterExecutionMacros),
			encodeJson(benchmark.Variables),
		)
		if err != nil {
			return fmt.Errorf("failed to store benchmark %v: %w", benchmark.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) FetchPlan(db *sql.DB, sequenceID string) ([]PlannedBenchmark, error) {
	rows, err := db.Query(`SELECT
		sequence_id, position, name, unique_name, descriptor, data_source, queries, runs, prewarm_runs, concurrency,
		before_benchmark, after_benchmark, before_execution, after_execution, variables
		FROM plans WHERE sequence_id = ? ORDER BY position`, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]PlannedBenchmark, 0)
	for rows.Next() {
		var plan PlannedBenchmark
		var queries, beforeBenchmark, afterBenchmark, beforeExecution, afterExecution, variables string
		err = rows.Scan(
			&plan.SequenceID, &plan.Position, &plan.Name, &plan.UniqueName, &plan.Descriptor, &plan.DataSource,
			&queries, &plan.Runs, &plan.PrewarmRuns, &plan.Concurrency,
			&beforeBenchmark, &afterBenchmark, &beforeExecution, &afterExecution, &variables,
		)
		if err != nil {
			return nil, err
		}
		for _, field := range []struct {
			text   string
			target any
		}{
			{queries, &plan.Queries},
			{beforeBenchmark, &plan.BeforeBenchmarkMacros},
			{afterBenchmark, &plan.AfterBenchmarkMacros},
			{beforeExecution, &plan.BeforeExecutionMacros},
			{afterExecution, &plan.AfterExecutionMacros},
			{variables, &plan.Variables},
		} {
			if err := json.Unmarshal([]byte(field.text), field.target); err != nil {
				return nil, fmt.Errorf("failed to decode stored plan %v: %w", plan.Name, err)
			}
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}
