package config

import (
	"fmt"

	"github.com/spf13/viper"

	"oceanworks.io/datapipe/pkg/logx"
)

// Config holds the global configuration for the application.
type Config struct {
	// Log contains logging-related configuration.
	Log *logx.LoggingConfig
	// Pipeline contains the pipeline configuration.
	Pipeline *PipelineConfig
}

// PipelineConfig holds the configuration for one ingestion pipeline.
type PipelineConfig struct {
	// StoreURL addresses the storage backend (file://, s3://, sftp://).
	StoreURL string
	// TmpDir is the base for temporary working directories.
	TmpDir string
	// Resolve contains the resolve step configuration.
	Resolve *ResolveConfig
	// Check contains the check step configuration.
	Check *CheckConfig
	// Harvest contains the harvest step configuration.
	Harvest *HarvestConfig
	// Database contains the harvest database configuration.
	Database *DatabaseConfig
}

// ResolveConfig holds the configuration for the resolve step.
type ResolveConfig struct {
	// RelativePathRoot anchors relative manifest entries.
	RelativePathRoot string
	// AllowDeleteManifests enables the delete manifest input form.
	AllowDeleteManifests bool
}

// CheckConfig holds the configuration for the check step.
type CheckConfig struct {
	// Checks lists the compliance suites to run.
	Checks []string
	// Criteria is the pass criteria forwarded to the compliance engine.
	Criteria string
	// SkipChecks lists individual checks to skip.
	SkipChecks []string
	// Verbosity is the compliance engine verbosity level.
	Verbosity int
	// SchemaBaseDir is the directory holding table schema documents.
	SchemaBaseDir string
}

// HarvestConfig holds the configuration for the harvest step.
type HarvestConfig struct {
	// Harvester selects the runner ("exec" or "csv").
	Harvester string
	// SliceSize bounds each harvest batch.
	SliceSize int
	// UndoPreviousSlices extends failure compensation to prior events.
	UndoPreviousSlices bool
	// LogDir is substituted into harvester command templates.
	LogDir string
	// IngestType selects the csv process sequence.
	IngestType string
	// Triggers declares the exec harvesters, in priority order.
	Triggers []*TriggerConfig
	// DBObjects declares the csv harvester's database objects.
	DBObjects []*DBObjectConfig
}

// TriggerConfig declares one exec harvester and its trigger events.
type TriggerConfig struct {
	// Name identifies the harvester.
	Name string
	// Exec is the command template.
	Exec string
	// Events lists the trigger events.
	Events []*EventConfig
}

// EventConfig declares one trigger event.
type EventConfig struct {
	// Regexes match destination paths claimed by this event.
	Regexes []string
	// ExtraParams are appended to the harvester command.
	ExtraParams string
}

// DBObjectConfig declares one named database object.
type DBObjectConfig struct {
	// Name is the object name, matched against csv file stems.
	Name string
	// Type is the object type ("table" or "view").
	Type string
	// Dependencies lists names of objects this one depends on.
	Dependencies []string
}

// DatabaseConfig holds the harvest database configuration.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string
	// SchemaBaseDir is the directory holding table and SQL documents.
	SchemaBaseDir string
}

var config = Config{
	Log: &logx.LoggingConfig{
		Level:          "Info",
		ConsoleLogging: true,
		FileLogging:    false,
	},
	Pipeline: &PipelineConfig{},
}

// Initialize loads the configuration from the specified file.
//
// Parameters:
//   - path: The path to the configuration file.
//
// Returns:
//   - An error if the configuration cannot be loaded.
func Initialize(path string) error {
	viper.Reset()
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("datapipe")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	initializeNestedStructs()

	return nil
}

// initializeNestedStructs ensures all nested structs are initialized.
func initializeNestedStructs() {
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	if config.Pipeline.Resolve == nil {
		config.Pipeline.Resolve = &ResolveConfig{}
	}
	if config.Pipeline.Check == nil {
		config.Pipeline.Check = &CheckConfig{}
	}
	if config.Pipeline.Harvest == nil {
		config.Pipeline.Harvest = &HarvestConfig{}
	}
	if config.Pipeline.Database == nil {
		config.Pipeline.Database = &DatabaseConfig{}
	}
}

// Get returns the loaded configuration.
//
// Returns:
//   - The global configuration.
func Get() Config {
	return config
}
