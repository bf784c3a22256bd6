package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigTestSuite) writeFile(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *ConfigTestSuite) TestDefaultsAreValid() {
	cfg := GetDefaultCatalogConfig()

	s.NoError(cfg.Validate())
	s.Equal("catalog", cfg.Service.Name)
	s.Equal(0.85, cfg.Matcher.AcceptThreshold)
	s.Equal("memory", cfg.Events.Driver)
}

func (s *ConfigTestSuite) TestLoadConfig_FileOverridesDefaults() {
	path := s.writeFile("catalog.yaml", `
scanner:
  workers: 8
matcher:
  accept_threshold: 0.9
metadata:
  timeout: 3s
`)
	cfg := GetDefaultCatalogConfig()

	err := NewManager("catalog").WithConfigPaths(path).LoadConfig(cfg)

	s.Require().NoError(err)
	s.Equal(8, cfg.Scanner.Workers)
	s.Equal(0.9, cfg.Matcher.AcceptThreshold)
	s.Equal(3*time.Second, cfg.Metadata.Timeout)
	// untouched defaults survive
	s.Equal(DefaultScanQueueSize, cfg.Scanner.QueueSize)
	s.Equal("localhost", cfg.Database.Host)
}

func (s *ConfigTestSuite) TestLoadConfig_EnvOverridesFile() {
	path := s.writeFile("catalog.yaml", "scanner:\n  workers: 8\n")
	s.T().Setenv("CATALOG_SCANNER__WORKERS", "2")
	s.T().Setenv("CATALOG_SCANNER__FAIL_ON_PROVIDER_OUTAGE", "true")

	cfg := GetDefaultCatalogConfig()
	err := NewManager("catalog").WithConfigPaths(path).LoadConfig(cfg)

	s.Require().NoError(err)
	s.Equal(2, cfg.Scanner.Workers)
	s.True(cfg.Scanner.FailOnProviderOutage)
}

func (s *ConfigTestSuite) TestLoadConfig_InvalidThresholds() {
	path := s.writeFile("catalog.yaml", "matcher:\n  plausible_threshold: 0.95\n")

	cfg := GetDefaultCatalogConfig()
	err := NewManager("catalog").WithConfigPaths(path).LoadConfig(cfg)

	s.Error(err)
	s.Contains(err.Error(), "plausible threshold")
}

func (s *ConfigTestSuite) TestLoadConfig_UnsupportedFormat() {
	path := s.writeFile("catalog.toml", "x = 1\n")

	err := NewManager("catalog").WithConfigPaths(path).LoadConfig(GetDefaultCatalogConfig())

	s.Error(err)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "metadata.cache.ttl", EnvKey("CATALOG_", "CATALOG_METADATA__CACHE__TTL"))
	assert.Equal(t, "scanner.queue_size", EnvKey("CATALOG_", "CATALOG_SCANNER__QUEUE_SIZE"))
}

func TestValidate_EventDrivers(t *testing.T) {
	cfg := GetDefaultCatalogConfig()
	cfg.Events.Driver = "kafka"
	require.Error(t, cfg.Validate())

	cfg.Events.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())

	cfg.Events.Driver = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
