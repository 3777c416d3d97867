package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data/Real_Estate_Sales_2001-2022_GL.csv", cfg.Dataset.File)
	assert.NoError(t, cfg.validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CTSALES_SERVER_PORT", "9090")
	t.Setenv("CTSALES_LOGGING_LEVEL", "debug")
	t.Setenv("CTSALES_DATASET_FILE", "testdata/sales.csv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "testdata/sales.csv", cfg.Dataset.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "non-positive read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: "read timeout",
		},
		{
			name:    "no allowed origins",
			mutate:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "allowed origin",
		},
		{
			name:    "missing dataset file",
			mutate:  func(c *Config) { c.Dataset.File = "" },
			wantErr: "dataset file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestMergeConfigs(t *testing.T) {
	fileConfig := Config{}
	fileConfig.Server.Port = 3000
	fileConfig.Logging.Level = "warn"
	fileConfig.Dataset.File = "from-file.csv"

	t.Run("file values fill gaps", func(t *testing.T) {
		envConfig := Config{}
		merged := mergeConfigs(fileConfig, envConfig)
		assert.Equal(t, 3000, merged.Server.Port)
		assert.Equal(t, "warn", merged.Logging.Level)
		assert.Equal(t, "from-file.csv", merged.Dataset.File)
	})

	t.Run("env values win", func(t *testing.T) {
		envConfig := Config{}
		envConfig.Server.Port = 9090
		envConfig.Dataset.File = "from-env.csv"
		merged := mergeConfigs(fileConfig, envConfig)
		assert.Equal(t, 9090, merged.Server.Port)
		assert.Equal(t, "from-env.csv", merged.Dataset.File)
		assert.Equal(t, "warn", merged.Logging.Level)
	})
}

func TestDatasetFile_Resolution(t *testing.T) {
	cfg := Default()

	cfg.Dataset.File = "/abs/sales.csv"
	assert.Equal(t, "/abs/sales.csv", cfg.DatasetFile())

	cfg.Dataset.File = "data/sales.csv"
	resolved := cfg.DatasetFile()
	assert.NotEqual(t, "data/sales.csv", resolved)
	assert.Contains(t, resolved, "data/sales.csv")
}
