package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/period"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Inventory configuration
	RootDir        string
	LedgerDriver   string
	LedgerDSN      string
	ReferenceDates []string
	Decisions      map[decide.Kind]string

	// Reports
	ReportLanguage  string
	ReportCurrency  string
	MetricsTextfile string
	Archive         ArchiveConfig

	// Logging configuration. LogLevel comes from --log-level, EnvLogLevel
	// from the config file or the environment.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// ArchiveConfig is the optional S3 archive of finalized inventories.
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Decision answers accepted in the decisions section.
const (
	DecisionAsk = "ask"
	DecisionYes = "yes"
	DecisionNo  = "no"
)

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (STOCKTAKE_ prefix)
// 3. .env files
// 4. Config file (~/.stocktake.yaml or ./.stocktake.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(constants.DefaultConfigName)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	}

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Format:  viper.GetString("format"),

		ConfigFile: viper.ConfigFileUsed(),

		RootDir:        expandPath(viper.GetString("root_dir")),
		LedgerDriver:   viper.GetString("ledger.driver"),
		LedgerDSN:      expandPath(viper.GetString("ledger.dsn")),
		ReferenceDates: viper.GetStringSlice("reference_dates"),
		Decisions:      make(map[decide.Kind]string),

		ReportLanguage:  viper.GetString("report.language"),
		ReportCurrency:  viper.GetString("report.currency"),
		MetricsTextfile: expandPath(viper.GetString("metrics.textfile")),
		Archive: ArchiveConfig{
			Bucket:          viper.GetString("archive.bucket"),
			Prefix:          viper.GetString("archive.prefix"),
			Region:          viper.GetString("archive.region"),
			Endpoint:        viper.GetString("archive.endpoint"),
			PathStyle:       viper.GetBool("archive.path_style"),
			AccessKeyID:     viper.GetString("archive.access_key_id"),
			SecretAccessKey: viper.GetString("archive.secret_access_key"),
		},

		EnvLogLevel: getEnvOrDefault("LOG_LEVEL", viper.GetString("log.level")),
		LogFormat:   viper.GetString("log.format"),
		LogOutput:   expandPath(viper.GetString("log.output")),
	}

	for _, kind := range decide.Kinds() {
		answer := strings.ToLower(viper.GetString("decisions." + string(kind)))
		switch answer {
		case "", DecisionAsk:
		case DecisionYes, DecisionNo:
			config.Decisions[kind] = answer
		default:
			return nil, &errors.ValidationError{Field: "decisions." + string(kind), Value: answer, Message: "must be ask, yes or no"}
		}
	}

	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

func setDefaults() {
	viper.SetDefault("root_dir", constants.DefaultRootDir)
	viper.SetDefault("ledger.driver", constants.DefaultLedgerDriver)
	viper.SetDefault("ledger.dsn", constants.DefaultLedgerPath)
	refs := make([]string, 0, 2)
	for _, r := range period.DefaultReferences() {
		refs = append(refs, r.String())
	}
	viper.SetDefault("reference_dates", refs)
	viper.SetDefault("report.language", "en")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("log.output", "stderr")
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	envFiles := []string{
		".env",
		".env.local",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
