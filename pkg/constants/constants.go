// Package constants provides shared constants used throughout the stocktake
// codebase: file permissions, retry limits, artifact naming and formats that
// must stay consistent between the engine, the CLI and the recovery path.
package constants

import "time"

// Timeout constants
const (
	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// LedgerTimeout bounds the ledger transaction of a run
	LedgerTimeout = 30 * time.Second

	// ShutdownTimeout bounds closing the ledger and flushing metrics on exit
	ShutdownTimeout = 5 * time.Second

	// RetryBackoff is the pause before retrying a locked directory removal
	RetryBackoff = 500 * time.Millisecond
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants
const (
	// MaxRetries is the maximum number of attempts to retire a locked
	// inventory directory before the rename fallback is offered
	MaxRetries = 3

	// MaxRenameSuffix bounds the search for a free fallback directory name
	MaxRenameSuffix = 100

	// ShortIDLength is the number of run id characters used in staging names
	ShortIDLength = 8
)

// Artifact naming. Every name is formatted with the reconciliation date.
const (
	// InventoryDirPrefix prefixes the canonical directory of a date
	InventoryDirPrefix = "inventory_"

	// TempDirPrefix prefixes the staging directory of a run
	TempDirPrefix = "temp_inventory_"

	// TrashDirPrefix prefixes a retired canonical directory awaiting removal
	TrashDirPrefix = ".trash_inventory_"

	// FallbackSuffix is appended to the canonical name by the rename fallback
	FallbackSuffix = "_new"

	// RawScanFile is the verbatim copy of the scan input
	RawScanFile = "raw_inventory_%s.txt"

	// SortedCountFile is the sorted code;quantity listing
	SortedCountFile = "sorted_inventory_%s.csv"

	// FamiliesDir holds one listing per family
	FamiliesDir = "families"

	// RunReportFile is the rendered run report
	RunReportFile = "report_%s.md"

	// JournalDir holds the run journals under the root directory
	JournalDir = ".journal"

	// ScanExtension is the only accepted scan file extension
	ScanExtension = ".txt"

	// CSVSeparator separates columns of every listing
	CSVSeparator = ';'
)

// Movement defaults
const (
	// MovementSource tags every movement created by a stock count
	MovementSource = "M"

	// MovementNote is formatted with the reconciliation date
	MovementNote = "manual stock count of %s"
)

// Format constants
const (
	// DateFormat is the layout of reconciliation dates in names and notes
	DateFormat = "2006-01-02"

	// ReferenceDateFormat is the month-day layout of configured reference dates
	ReferenceDateFormat = "01-02"

	// TimeFormatISO8601 is the ISO 8601 time format
	TimeFormatISO8601 = time.RFC3339

	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"
)

// Path constants
const (
	// DefaultRootDir is the default inventory root
	DefaultRootDir = "~/.stocktake/inventories"

	// DefaultLedgerPath is the default SQLite ledger file
	DefaultLedgerPath = "~/.stocktake/ledger.db"

	// DefaultConfigName is the config file name looked up in $HOME and the working directory
	DefaultConfigName = ".stocktake"

	// EnvPrefix prefixes every environment variable read by the CLI
	EnvPrefix = "STOCKTAKE"

	// DefaultLedgerDriver is the ledger used when none is configured
	DefaultLedgerDriver = "sqlite"
)
