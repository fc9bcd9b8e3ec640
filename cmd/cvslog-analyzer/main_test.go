package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olegiv/cvslog-analyzer/internal/classification"
	"github.com/olegiv/cvslog-analyzer/internal/config"
	"github.com/olegiv/cvslog-analyzer/internal/logging"
	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
	"github.com/olegiv/cvslog-analyzer/internal/report"
	"github.com/olegiv/go-logger"
)

var rule = strings.Repeat("=", 77)

var sampleLog = `RCS file: /export/cvs/telas/Centro/ALPHA/tela1,v
Working file: ALPHA/tela1
head: 1.2
----------------------------
revision 1.2
date: 2023/05/10 14:30:00;  author: joao;  state: Exp;  lines: +3 -1
#ANOMALIA#30#fix
----------------------------
revision 1.1
date: 2023/05/01 09:00:00;  author: maria;  state: Exp;
#NOVA#15#first
` + rule + `
RCS file: /export/cvs/telas/Centro/NORTE/BETA/Ana01,v
Working file: BETA/Ana01
----------------------------
revision 1.1
date: 2023/05/12 08:00:00;  author: joao;  state: Exp;
plain message
` + rule + "\n"

type testEnv struct {
	cfg *config.Config
	log *logging.SecureLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	logPath := filepath.Join(dir, "cvs.log")
	if err := os.WriteFile(logPath, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	log := logging.NewSecure(logger.New(logger.Config{
		Level:    "error",
		LogDir:   filepath.Join(dir, "logs"),
		Filename: "test.log",
	}))
	t.Cleanup(func() { _ = log.Close() })

	return &testEnv{
		cfg: &config.Config{
			CVSLogPath:           logPath,
			MaxLogSizeMB:         10,
			RepositoryRootPrefix: "/export/cvs",
			FacilityMarker:       "telas/Centro",
			DefaultRegion:        "GENERAL",
			ParseWorkers:         2,
			MappingFile:          filepath.Join(dir, "mapping.yaml"),
			LogLevel:             "error",
			EnableDatabase:       true,
			DatabasePath:         filepath.Join(dir, "data", "cvslog.db"),
			ParseRetentionDays:   90,
		},
		log: log,
	}
}

func (e *testEnv) run(t *testing.T, cli *config.CLIOptions) []byte {
	t.Helper()
	var out bytes.Buffer
	if err := runAnalyzer(e.cfg, cli, e.log, &out); err != nil {
		t.Fatalf("runAnalyzer failed: %v", err)
	}
	return out.Bytes()
}

func decodeRecords(t *testing.T, data []byte) []rcslog.Record {
	t.Helper()
	var records []rcslog.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, data)
	}
	return records
}

func TestRunAnalyzer_RecordsNewestFirst(t *testing.T) {
	env := newTestEnv(t)

	records := decodeRecords(t, env.run(t, &config.CLIOptions{}))

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	wantOrder := []string{"12/05/2023", "10/05/2023", "01/05/2023"}
	for i, want := range wantOrder {
		if records[i].Date != want {
			t.Errorf("record %d date = %s, want %s", i, records[i].Date, want)
		}
	}
	if records[0].Facility != "NORTE" || records[0].Region != "BETA" {
		t.Errorf("unexpected classification: %+v", records[0])
	}
}

func TestRunAnalyzer_MappingPersists(t *testing.T) {
	env := newTestEnv(t)

	first := decodeRecords(t, env.run(t, &config.CLIOptions{
		StructuredOnly: true,
		Mappings:       []config.MappingPair{{Old: "ANOMALIA", New: "MANUT"}},
	}))
	if first[0].Category != "MANUT" || first[0].Message != "#MANUT#30#fix" {
		t.Errorf("mapping not applied: %+v", first[0])
	}

	fromFile, err := classification.LoadFile(env.cfg.MappingFile)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if target, ok := fromFile.Get("ANOMALIA"); !ok || target != "MANUT" {
		t.Errorf("mapping file not written, got %v", fromFile.Entries())
	}

	// Second run restores the parse and the mapping from storage
	env.cfg.MappingFile = ""
	second := decodeRecords(t, env.run(t, &config.CLIOptions{StructuredOnly: true}))
	if second[0].Category != "MANUT" {
		t.Errorf("stored mapping not applied: %+v", second[0])
	}

	third := decodeRecords(t, env.run(t, &config.CLIOptions{StructuredOnly: true, ClearMapping: true}))
	if third[0].Category != "ANOMALIA" {
		t.Errorf("cleared mapping should restore parsed category: %+v", third[0])
	}
}

func TestRunAnalyzer_Summary(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.EnableDatabase = false

	out := env.run(t, &config.CLIOptions{
		Summary:  true,
		Mappings: []config.MappingPair{{Old: "NOVA", New: "ANOMALIA"}},
	})

	var stats report.Statistics
	if err := json.Unmarshal(out, &stats); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, out)
	}
	if stats.Records != 2 || stats.TotalMinutes != 45 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if len(stats.CategoryCounts) != 1 || stats.CategoryCounts[0].Key != "ANOMALIA" || stats.CategoryCounts[0].Count != 2 {
		t.Errorf("merged categories not summarized: %+v", stats.CategoryCounts)
	}
}

func TestRunAnalyzer_Facets(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.EnableDatabase = false

	out := env.run(t, &config.CLIOptions{
		Facets:           true,
		ExcludeAuxiliary: true,
		Mappings:         []config.MappingPair{{Old: "NOVA", New: "ANOMALIA"}},
	})

	var opts report.Options
	if err := json.Unmarshal(out, &opts); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, out)
	}
	if len(opts.FileNames) != 1 || opts.FileNames[0] != "tela1" {
		t.Errorf("auxiliary screens should be excluded from facets: %+v", opts)
	}
	if len(opts.Categories) != 1 || opts.Categories[0] != "ANOMALIA" {
		t.Errorf("Categories = %v, want the merged category only", opts.Categories)
	}
}

func TestRunAnalyzer_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.EnableDatabase = false

	records := decodeRecords(t, env.run(t, &config.CLIOptions{
		Authors: []string{"joao"},
		From:    "11/05/2023",
	}))
	if len(records) != 1 || records[0].FileName != "Ana01" {
		t.Errorf("unexpected selection: %+v", records)
	}
}

func TestRunAnalyzer_NonFiniteMinutes(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.EnableDatabase = false
	odd := strings.Replace(sampleLog, "#NOVA#15#first", "#NOVA#nan#first", 1)
	odd = strings.Replace(odd, "#ANOMALIA#30#fix", "#ANOMALIA#inf#fix", 1)
	if err := os.WriteFile(env.cfg.CVSLogPath, []byte(odd), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	records := decodeRecords(t, env.run(t, &config.CLIOptions{StructuredOnly: true}))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Minutes != nil {
			t.Errorf("%s %s: Minutes = %v, want nil", r.FileName, r.RevisionID, *r.Minutes)
		}
	}

	var stats report.Statistics
	if err := json.Unmarshal(env.run(t, &config.CLIOptions{Summary: true}), &stats); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if stats.TotalMinutes != 0 {
		t.Errorf("TotalMinutes = %v, want 0", stats.TotalMinutes)
	}
}

func TestRunAnalyzer_Errors(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	if err := runAnalyzer(env.cfg, &config.CLIOptions{From: "2023-05-01"}, env.log, &out); err == nil {
		t.Error("expected error for invalid -from date")
	}

	env.cfg.CVSLogPath = filepath.Join(t.TempDir(), "missing.log")
	if err := runAnalyzer(env.cfg, &config.CLIOptions{}, env.log, &out); err == nil {
		t.Error("expected error for missing log file")
	}
}
