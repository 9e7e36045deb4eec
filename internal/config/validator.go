package config

import (
	"github.com/pkg/errors"
)

// ValidatePipelineConfig validates the pipeline configuration.
//
// Parameters:
//   - pipelineConfig: The configuration to validate.
//
// Returns:
//   - An error if any required field is missing, otherwise nil.
func ValidatePipelineConfig(pipelineConfig PipelineConfig) error {
	if pipelineConfig.StoreURL == "" {
		return errors.New("missing StoreURL in configuration")
	}
	if pipelineConfig.TmpDir == "" {
		return errors.New("missing TmpDir in configuration")
	}
	return nil
}

// ValidateHarvestConfig validates the harvest configuration.
//
// Parameters:
//   - harvestConfig: The configuration to validate.
//
// Returns:
//   - An error if any required field is missing, otherwise nil.
func ValidateHarvestConfig(harvestConfig HarvestConfig) error {
	switch harvestConfig.Harvester {
	case "exec":
		if len(harvestConfig.Triggers) == 0 {
			return errors.New("missing Triggers in configuration")
		}
		for _, trigger := range harvestConfig.Triggers {
			if trigger.Name == "" {
				return errors.New("missing Name in trigger configuration")
			}
			if trigger.Exec == "" {
				return errors.New("missing Exec in trigger configuration")
			}
		}
	case "csv":
		if len(harvestConfig.DBObjects) == 0 {
			return errors.New("missing DBObjects in configuration")
		}
	case "":
		return errors.New("missing Harvester in configuration")
	default:
		return errors.Errorf("unknown Harvester '%s' in configuration", harvestConfig.Harvester)
	}
	return nil
}

// ValidateDatabaseConfig validates the database configuration.
//
// Parameters:
//   - databaseConfig: The configuration to validate.
//
// Returns:
//   - An error if any required field is missing, otherwise nil.
func ValidateDatabaseConfig(databaseConfig DatabaseConfig) error {
	if databaseConfig.Path == "" {
		return errors.New("missing Path in configuration")
	}
	if databaseConfig.SchemaBaseDir == "" {
		return errors.New("missing SchemaBaseDir in configuration")
	}
	return nil
}
