package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testConfigYaml = `
log:
  level: Info
  consolelogging: true
pipeline:
  storeurl: file:///var/lib/datapipe/storage
  tmpdir: /tmp/datapipe
  resolve:
    relativepathroot: /var/incoming
    allowdeletemanifests: true
  check:
    checks:
      - cf
    criteria: normal
    schemabasedir: /etc/datapipe/schemas
  harvest:
    harvester: exec
    slicesize: 512
    undopreviousslices: true
    logdir: /var/log/datapipe
    triggers:
      - name: netcdf
        exec: "harvest.sh -base {base} -file-list {file_list}"
        events:
          - regexes:
              - '\.nc$'
            extraparams: "-mode full"
  database:
    path: /var/lib/datapipe/harvest.db
    schemabasedir: /etc/datapipe/schemas
`

func TestInitialize(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "datapipe.yaml")
	if err := os.WriteFile(configPath, []byte(testConfigYaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_ = os.Setenv("DATAPIPE_LOG.LEVEL", "Debug") // use viper's SetEnvPrefix and automatic env var loading
	defer func() { _ = os.Unsetenv("DATAPIPE_LOG.LEVEL") }()

	err := Initialize(configPath)
	if err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
	assert.Equal(t, "Debug", config.Log.Level)
	assert.Equal(t, "file:///var/lib/datapipe/storage", config.Pipeline.StoreURL)
	assert.Equal(t, "/tmp/datapipe", config.Pipeline.TmpDir)
	assert.True(t, config.Pipeline.Resolve.AllowDeleteManifests)
	assert.Equal(t, []string{"cf"}, config.Pipeline.Check.Checks)
	assert.Equal(t, 512, config.Pipeline.Harvest.SliceSize)
	assert.Equal(t, 1, len(config.Pipeline.Harvest.Triggers))
	assert.Equal(t, "netcdf", config.Pipeline.Harvest.Triggers[0].Name)
	assert.Equal(t, 1, len(config.Pipeline.Harvest.Triggers[0].Events))
	assert.Equal(t, `\.nc$`, config.Pipeline.Harvest.Triggers[0].Events[0].Regexes[0])
	assert.Equal(t, "/var/lib/datapipe/harvest.db", config.Pipeline.Database.Path)

	// Test with an invalid config path
	err = Initialize("/invalid/path")
	if err == nil {
		t.Fatal("Expected error for invalid config path, but got none")
	}
}

func TestInitialize_NestedStructDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "datapipe.yaml")
	minimal := "pipeline:\n  storeurl: file:///srv/storage\n  tmpdir: /tmp\n"
	if err := os.WriteFile(configPath, []byte(minimal), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	err := Initialize(configPath)
	if err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}

	// omitted sections are initialized, never nil
	cfg := Get()
	assert.NotNil(t, cfg.Pipeline.Resolve)
	assert.NotNil(t, cfg.Pipeline.Check)
	assert.NotNil(t, cfg.Pipeline.Harvest)
	assert.NotNil(t, cfg.Pipeline.Database)
}
