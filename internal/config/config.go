package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/cvslog-analyzer/internal/report"
)

// MappingPair is one -map OLD=NEW argument.
type MappingPair struct {
	Old string
	New string
}

// mappingFlag collects repeated -map arguments.
type mappingFlag []MappingPair

func (m *mappingFlag) String() string {
	parts := make([]string, len(*m))
	for i, p := range *m {
		parts[i] = p.Old + "=" + p.New
	}
	return strings.Join(parts, ",")
}

func (m *mappingFlag) Set(value string) error {
	old, target, ok := strings.Cut(value, "=")
	old, target = strings.TrimSpace(old), strings.TrimSpace(target)
	if !ok || old == "" || target == "" {
		return fmt.Errorf("expected OLD=NEW, got %q", value)
	}
	*m = append(*m, MappingPair{Old: old, New: target})
	return nil
}

// listFlag collects repeated or comma-separated values.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	SourcePath   string        // -source-path: path to the cvs log dump
	Mappings     []MappingPair // -map OLD=NEW: category rewrites, repeatable
	ClearMapping bool          // -clear-mapping: drop stored mapping before applying -map

	StructuredOnly   bool     // -structured-only
	ExcludeAuxiliary bool     // -exclude-auxiliary: skip Ana*/Dig* screens
	ExcludeTemporary bool     // -exclude-temporary: skip .#* and .nfs* files
	ExcludeAttic     bool     // -exclude-attic: skip files under /Attic/
	Facilities       []string // -facility, repeatable
	Regions          []string // -region, repeatable
	Authors          []string // -author, repeatable
	Files            []string // -file, repeatable
	Path             string   // -path: case-insensitive repository path substring
	From             string   // -from DD/MM/YYYY
	To               string   // -to DD/MM/YYYY

	Summary     bool // -summary: print statistics instead of records
	Facets      bool // -facets: print available filter values
	Notify      bool // -notify: send the statistics to Telegram
	ShowHelp    bool // -help: show usage
	ShowVersion bool // -version: show version
}

// ParseCLI parses command-line arguments and returns CLIOptions
func ParseCLI() *CLIOptions {
	opts, err := parseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		// flag.CommandLine exits on error, so this is unreachable in practice
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

func parseArgs(fs *flag.FlagSet, args []string) (*CLIOptions, error) {
	opts := &CLIOptions{}
	var mappings mappingFlag
	var facilities, regions, authors, files listFlag

	fs.StringVar(&opts.SourcePath, "source-path", "", "Path to cvs log dump (overrides CVS_LOG_PATH)")
	fs.Var(&mappings, "map", "Rewrite category OLD to NEW, e.g. -map ANOMALIA=MANUT (repeatable)")
	fs.BoolVar(&opts.ClearMapping, "clear-mapping", false, "Clear the stored category mapping")
	fs.BoolVar(&opts.StructuredOnly, "structured-only", false, "Only revisions with #CATEGORY#MINUTES#COMMENT messages")
	fs.BoolVar(&opts.ExcludeAuxiliary, "exclude-auxiliary", false, "Skip auxiliary screens (Ana*, Dig*)")
	fs.BoolVar(&opts.ExcludeTemporary, "exclude-temporary", false, "Skip temporary files (.#*, .nfs*)")
	fs.BoolVar(&opts.ExcludeAttic, "exclude-attic", false, "Skip files removed to the Attic")
	fs.Var(&facilities, "facility", "Only these facilities (repeatable or comma-separated)")
	fs.Var(&regions, "region", "Only these regions (repeatable or comma-separated)")
	fs.Var(&authors, "author", "Only these authors (repeatable or comma-separated)")
	fs.Var(&files, "file", "Only these file names (repeatable or comma-separated)")
	fs.StringVar(&opts.Path, "path", "", "Only repository paths containing this text (case-insensitive)")
	fs.StringVar(&opts.From, "from", "", "Only revisions on or after DD/MM/YYYY")
	fs.StringVar(&opts.To, "to", "", "Only revisions on or before DD/MM/YYYY")
	fs.BoolVar(&opts.Summary, "summary", false, "Print statistics instead of records")
	fs.BoolVar(&opts.Facets, "facets", false, "Print available filter values instead of records")
	fs.BoolVar(&opts.Notify, "notify", false, "Send statistics to Telegram (implies ENABLE_NOTIFICATIONS)")
	fs.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		out := fs.Output()
		_, _ = fmt.Fprintf(out, "CVS Log Analyzer - revision history from cvs log dumps\n\n")
		_, _ = fmt.Fprintf(out, "Usage: %s [options]\n\n", fs.Name())
		_, _ = fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(out, "\nExamples:\n")
		_, _ = fmt.Fprintf(out, "  %s -source-path cvs.log\n", fs.Name())
		_, _ = fmt.Fprintf(out, "  %s -source-path cvs.log -structured-only -facility ALPHA -summary\n", fs.Name())
		_, _ = fmt.Fprintf(out, "  %s -map ANOMALIA=MANUT -map CORRECAO=MANUT -summary\n", fs.Name())
		_, _ = fmt.Fprintf(out, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(out, "CLI arguments override environment variables.\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Mappings = mappings
	opts.Facilities = facilities
	opts.Regions = regions
	opts.Authors = authors
	opts.Files = files

	return opts, nil
}

// PrintUsage prints the command-line usage information
func PrintUsage() {
	flag.CommandLine.Usage()
}

// Filter builds the record filter selected on the command line.
func (o *CLIOptions) Filter() (report.Filter, error) {
	f := report.Filter{
		StructuredOnly:   o.StructuredOnly,
		ExcludeAuxiliary: o.ExcludeAuxiliary,
		ExcludeTemporary: o.ExcludeTemporary,
		ExcludeAttic:     o.ExcludeAttic,
		Facilities:       o.Facilities,
		Regions:          o.Regions,
		FileNames:        o.Files,
		Authors:          o.Authors,
		PathContains:     o.Path,
	}

	var err error
	if o.From != "" {
		if f.From, err = report.ParseDate(o.From); err != nil {
			return report.Filter{}, fmt.Errorf("invalid -from date %q (expected DD/MM/YYYY): %w", o.From, err)
		}
	}
	if o.To != "" {
		if f.To, err = report.ParseDate(o.To); err != nil {
			return report.Filter{}, fmt.Errorf("invalid -to date %q (expected DD/MM/YYYY): %w", o.To, err)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return report.Filter{}, fmt.Errorf("-to %s is before -from %s", o.To, o.From)
	}

	return f, nil
}

// Config holds all application configuration
type Config struct {
	// Log source
	CVSLogPath   string
	MaxLogSizeMB int

	// Parsing
	RepositoryRootPrefix string
	FacilityMarker       string
	DefaultRegion        string
	ParseWorkers         int // 0 means one worker per CPU

	// Classification
	MappingFile string // optional YAML mapping file

	// Application
	LogLevel           string
	EnableDatabase     bool
	DatabasePath       string
	ParseRetentionDays int

	// Telegram
	EnableNotifications    bool
	TelegramBotToken       string
	TelegramArchiveChannel int64
}

// Load loads configuration from .env file and environment variables
// Priority: .env file > OS environment variables
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	// Set up viper first to read OS environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv.Load() sets OS env vars from .env, which viper will then read
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		CVSLogPath:   viper.GetString("CVS_LOG_PATH"),
		MaxLogSizeMB: viper.GetInt("MAX_LOG_SIZE_MB"),

		RepositoryRootPrefix: viper.GetString("REPOSITORY_ROOT_PREFIX"),
		FacilityMarker:       strings.Trim(viper.GetString("FACILITY_MARKER"), "/"),
		DefaultRegion:        viper.GetString("DEFAULT_REGION"),
		ParseWorkers:         viper.GetInt("PARSE_WORKERS"),

		MappingFile: viper.GetString("MAPPING_FILE"),

		LogLevel:           viper.GetString("LOG_LEVEL"),
		EnableDatabase:     viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:       viper.GetString("DATABASE_PATH"),
		ParseRetentionDays: viper.GetInt("PARSE_RETENTION_DAYS"),

		EnableNotifications:    viper.GetBool("ENABLE_NOTIFICATIONS"),
		TelegramBotToken:       viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramArchiveChannel: viper.GetInt64("TELEGRAM_CHANNEL_ARCHIVE_ID"),
	}

	// Apply CLI overrides (highest priority)
	if cli != nil {
		if cli.SourcePath != "" {
			config.CVSLogPath = cli.SourcePath
		}
		if cli.Notify {
			config.EnableNotifications = true
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("MAX_LOG_SIZE_MB", 50)
	viper.SetDefault("REPOSITORY_ROOT_PREFIX", "/export/cvs")
	viper.SetDefault("FACILITY_MARKER", "telas/Centro")
	viper.SetDefault("DEFAULT_REGION", "GENERAL")
	viper.SetDefault("PARSE_WORKERS", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENABLE_DATABASE", true)
	viper.SetDefault("DATABASE_PATH", "./data/cvslog.db")
	viper.SetDefault("PARSE_RETENTION_DAYS", 90)
	viper.SetDefault("ENABLE_NOTIFICATIONS", false)
}

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CVSLogPath == "" {
		return fmt.Errorf("CVS_LOG_PATH is required (or pass -source-path)")
	}

	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 1024 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 1024")
	}

	if c.FacilityMarker == "" {
		return fmt.Errorf("FACILITY_MARKER must not be empty")
	}
	if c.DefaultRegion == "" {
		return fmt.Errorf("DEFAULT_REGION must not be empty")
	}
	if c.ParseWorkers < 0 {
		return fmt.Errorf("PARSE_WORKERS must be 0 (one per CPU) or positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.EnableDatabase {
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
		}
		if c.ParseRetentionDays < 1 {
			return fmt.Errorf("PARSE_RETENTION_DAYS must be at least 1")
		}
	}

	if c.EnableNotifications {
		if err := c.validateTelegram(); err != nil {
			return err
		}
	}

	return nil
}

// validateTelegram validates Telegram settings, required only when notifications are on
func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when notifications are enabled")
	}
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}

	if c.TelegramArchiveChannel == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID is required when notifications are enabled")
	}
	if c.TelegramArchiveChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID must be a supergroup/channel ID (starts with -100)")
	}

	return nil
}
