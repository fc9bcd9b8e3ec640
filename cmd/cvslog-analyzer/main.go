package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/cvslog-analyzer/internal/classification"
	"github.com/olegiv/cvslog-analyzer/internal/config"
	"github.com/olegiv/cvslog-analyzer/internal/logging"
	"github.com/olegiv/cvslog-analyzer/internal/logsource"
	"github.com/olegiv/cvslog-analyzer/internal/notification"
	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
	"github.com/olegiv/cvslog-analyzer/internal/report"
	"github.com/olegiv/cvslog-analyzer/internal/session"
	"github.com/olegiv/cvslog-analyzer/internal/storage"
	"github.com/olegiv/go-logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.ParseCLI()

	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	if cli.ShowVersion {
		fmt.Printf("cvslog-analyzer %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// stdout carries the JSON report, so the logger writes to its file only
	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     "./logs",
		Filename:   "cvslog-analyzer.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    false,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Str("source", cfg.CVSLogPath).Msg("Starting CVS log analyzer")

	if err := runAnalyzer(cfg, cli, log, os.Stdout); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	log.Info().Msg("Analysis completed successfully")
	return exitSuccess
}

func runAnalyzer(cfg *config.Config, cli *config.CLIOptions, log *logging.SecureLogger, out io.Writer) error {
	startTime := time.Now()

	filter, err := cli.Filter()
	if err != nil {
		return err
	}

	// 1. Initialize storage (if enabled)
	var store *storage.Storage
	if cfg.EnableDatabase {
		store, err = storage.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func(store *storage.Storage) {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}(store)
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
	}

	// 2. Read the log dump
	reader := logsource.NewReader(cfg.MaxLogSizeMB)
	content, err := reader.Read(cfg.CVSLogPath)
	if err != nil {
		return fmt.Errorf("failed to read log content: %w", err)
	}

	if sourceInfo, err := reader.GetSourceInfo(cfg.CVSLogPath); err == nil {
		log.Info().
			Float64("size_mb", sourceInfo["size_mb"].(float64)).
			Float64("age_hours", sourceInfo["age_hours"].(float64)).
			Msg("Log file read successfully")
	}

	// 3. Parse, reusing a stored parse of identical content
	parser := rcslog.NewParser(rcslog.Options{
		RootPrefix:     cfg.RepositoryRootPrefix,
		FacilityMarker: cfg.FacilityMarker,
		DefaultRegion:  cfg.DefaultRegion,
	})
	sess := session.New(parser, cfg.ParseWorkers)

	hash := session.ContentHash(content)
	if store != nil {
		if err := restoreParse(store, sess, hash); err != nil {
			log.Warn().Err(err).Msg("Failed to load stored parse, reparsing")
		}
	}

	parseStart := time.Now()
	reparsed := sess.Load(content)
	log.Info().
		Bool("reparsed", reparsed).
		Int("records", len(sess.RawRecords())).
		Dur("elapsed", time.Since(parseStart)).
		Msg("Revision log parsed")

	// 4. Classification mapping
	mapping, err := loadMapping(cfg, cli, store)
	if err != nil {
		return err
	}
	for old, target := range mapping.Entries() {
		sess.Merge(target, old)
	}
	if mapping.Len() > 0 {
		log.Info().Strs("categories", mapping.Keys()).Msg("Category mapping applied")
	}

	records := sess.Records()

	// 5. Select, order and summarize
	if cli.Facets {
		opts := report.AvailableOptions(records, cli.ExcludeAuxiliary, cli.ExcludeTemporary)
		opts.Categories = classification.Categories(records)
		return writeJSON(out, opts)
	}

	selected := report.SortNewestFirst(filter.Apply(records))
	stats := report.Summarize(selected)
	log.Info().
		Int("selected", len(selected)).
		Int("classified", stats.Records).
		Float64("total_minutes", stats.TotalMinutes).
		Msg("Records selected")

	if cli.Summary {
		err = writeJSON(out, stats)
	} else {
		err = writeJSON(out, selected)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	// 6. Persist (if enabled)
	if store != nil {
		persist(store, sess, cfg, log, reparsed)
	}

	// 7. Notify (if enabled)
	if cfg.EnableNotifications {
		if err := notify(cfg, stats, log); err != nil {
			return err
		}
	}

	log.Info().
		Float64("total_duration_s", time.Since(startTime).Seconds()).
		Msg("All operations completed successfully")

	return nil
}

// restoreParse installs records stored for hash into sess.
func restoreParse(store *storage.Storage, sess *session.Session, hash string) error {
	ok, err := store.HasParse(hash)
	if err != nil || !ok {
		return err
	}
	records, err := store.LoadRecords(hash)
	if err != nil {
		return err
	}
	sess.Restore(hash, records)
	return nil
}

// loadMapping combines the mapping file, the stored mapping and -map flags,
// in increasing priority. -clear-mapping drops the file and stored entries
// first; the cleared state is written back.
func loadMapping(cfg *config.Config, cli *config.CLIOptions, store *storage.Storage) (*classification.Mapping, error) {
	mapping := classification.NewMapping()

	if cli.ClearMapping {
		if store != nil {
			if err := store.ClearMapping(); err != nil {
				return nil, err
			}
		}
	} else {
		if cfg.MappingFile != "" {
			fromFile, err := classification.LoadFile(cfg.MappingFile)
			if err != nil {
				return nil, err
			}
			mergeInto(mapping, fromFile)
		}
		if store != nil {
			stored, err := store.LoadMapping()
			if err != nil {
				return nil, err
			}
			mergeInto(mapping, stored)
		}
	}

	for _, pair := range cli.Mappings {
		mapping.Set(pair.Old, pair.New)
	}

	if cfg.MappingFile != "" && (cli.ClearMapping || len(cli.Mappings) > 0) {
		if err := mapping.SaveFile(cfg.MappingFile); err != nil {
			return nil, err
		}
	}

	return mapping, nil
}

func mergeInto(dst, src *classification.Mapping) {
	for old, target := range src.Entries() {
		dst.Set(old, target)
	}
}

// persist stores the parse and mapping. Failures are logged, not returned.
func persist(store *storage.Storage, sess *session.Session, cfg *config.Config, log *logging.SecureLogger, reparsed bool) {
	if reparsed {
		parse, err := store.SaveParse(sess.Hash(), cfg.CVSLogPath, sess.RawRecords())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to save parse to database")
		} else {
			log.Info().Int64("id", parse.ID).Int("records", parse.RecordCount).Msg("Parse saved to database")
		}
	}

	if sess.Mapping().Len() > 0 {
		if err := store.SaveMapping(sess.Mapping()); err != nil {
			log.Warn().Err(err).Msg("Failed to save category mapping")
		}
	}

	deleted, err := store.CleanupOldParses(cfg.ParseRetentionDays)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cleanup old parses")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Old parses cleaned up")
	}
}

func notify(cfg *config.Config, stats *report.Statistics, log *logging.SecureLogger) error {
	telegramClient, err := notification.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramArchiveChannel)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	defer func(telegramClient *notification.TelegramClient) {
		if err := telegramClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Telegram client")
		}
	}(telegramClient)

	botInfo := telegramClient.GetBotInfo()
	log.Info().Str("username", botInfo["username"].(string)).Msg("Telegram bot initialized")

	if err := telegramClient.SendRevisionReport(stats, filepath.Base(cfg.CVSLogPath)); err != nil {
		return fmt.Errorf("failed to send Telegram notification: %w", err)
	}
	log.Info().Msg("Telegram report sent")
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
