package config

import (
	"strings"
	"testing"
)

func validBaseConfig() *Config {
	return &Config{
		App:    AppConfig{Name: "test-app", Version: "1.0.0", LogLevel: "info", LogFormat: "json"},
		Server: ServerConfig{Enabled: true, Host: "0.0.0.0", Port: 8420},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    8021,
			Path:    "/metrics",
		},
		Persistence:  PersistenceConfig{Driver: "memory"},
		Orchestrator: OrchestratorConfig{MaxConcurrentAnalyses: 5, DefaultTimeoutMinutes: 30, DefaultMaxEvents: 100_000},
		RuleEngine:   RuleEngineConfig{CompiledRuleCacheSize: 1024},
		PluginHost:   PluginHostConfig{CacheSize: 256, MaxMemoryMiB: 100, MaxWallClock: "30s"},
		IOCExtractor: IOCExtractorConfig{ConfidenceThreshold: 40},
	}
}

func TestValidConfigPasses(t *testing.T) {
	if err := ValidateConfig(validBaseConfig()); err != nil {
		t.Errorf("Valid config should pass validation, got error: %v", err)
	}
}

func TestInvalidServerPort(t *testing.T) {
	testCases := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too large", 65536},
		{"port too large 2", 100000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := validBaseConfig()
			config.Server.Port = tc.port

			err := ValidateConfig(config)
			if err == nil {
				t.Fatalf("Invalid server port %d should fail validation", tc.port)
			}
			if !strings.Contains(err.Error(), "invalid server port") {
				t.Errorf("Expected 'invalid server port' error, got: %v", err)
			}
		})
	}
}

func TestPersistenceRequiresDSNForPostgres(t *testing.T) {
	config := validBaseConfig()
	config.Persistence = PersistenceConfig{Driver: "postgres"}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Postgres driver without a DSN should fail validation")
	}
	if !strings.Contains(err.Error(), "dsn cannot be empty") {
		t.Errorf("Expected 'dsn cannot be empty' error, got: %v", err)
	}
}

func TestUnknownPersistenceDriverRejected(t *testing.T) {
	config := validBaseConfig()
	config.Persistence = PersistenceConfig{Driver: "mongodb"}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Unknown persistence driver should fail validation")
	}
	if !strings.Contains(err.Error(), "unknown persistence driver") {
		t.Errorf("Expected 'unknown persistence driver' error, got: %v", err)
	}
}

func TestPortConflict(t *testing.T) {
	config := validBaseConfig()
	config.Metrics.Port = config.Server.Port

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Port conflict should fail validation")
	}
	if !strings.Contains(err.Error(), "port conflict") {
		t.Errorf("Expected 'port conflict' error, got: %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	config := validBaseConfig()
	config.App.LogLevel = "invalid-level"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Invalid log level should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected 'invalid log level' error, got: %v", err)
	}
}

func TestOrchestratorLimits(t *testing.T) {
	testCases := []struct {
		name             string
		maxConcurrent    int
		timeoutMinutes   int
		maxEvents        int
		expectError      bool
		errorMsg         string
	}{
		{"zero concurrency", 0, 30, 1000, true, "max concurrent analyses must be positive"},
		{"zero timeout", 5, 0, 1000, true, "timeout minutes must be positive"},
		{"zero max events", 5, 30, 0, true, "max events must be positive"},
		{"valid config", 5, 30, 1000, false, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := validBaseConfig()
			config.Orchestrator = OrchestratorConfig{
				MaxConcurrentAnalyses: tc.maxConcurrent,
				DefaultTimeoutMinutes: tc.timeoutMinutes,
				DefaultMaxEvents:      tc.maxEvents,
			}

			err := ValidateConfig(config)
			if tc.expectError {
				if err == nil {
					t.Fatalf("%s: expected error containing %q, got nil", tc.name, tc.errorMsg)
				}
				if !strings.Contains(err.Error(), tc.errorMsg) {
					t.Errorf("%s: expected error containing %q, got: %v", tc.name, tc.errorMsg, err)
				}
			} else if err != nil {
				t.Errorf("%s: expected no error, got: %v", tc.name, err)
			}
		})
	}
}

func TestInvalidDuration(t *testing.T) {
	config := validBaseConfig()
	config.Server.ReadTimeout = "invalid-duration"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Invalid duration should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid read_timeout") {
		t.Errorf("Expected 'invalid read_timeout' error, got: %v", err)
	}
}

func TestInvalidWallClockRejected(t *testing.T) {
	config := validBaseConfig()
	config.PluginHost.MaxWallClock = "not-a-duration"

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Invalid plugin host wall clock should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid max wall clock") {
		t.Errorf("Expected 'invalid max wall clock' error, got: %v", err)
	}
}

func TestIOCConfidenceThresholdOutOfRangeRejected(t *testing.T) {
	config := validBaseConfig()
	config.IOCExtractor.ConfidenceThreshold = 150

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Out-of-range confidence threshold should fail validation")
	}
	if !strings.Contains(err.Error(), "confidence threshold") {
		t.Errorf("Expected confidence threshold error, got: %v", err)
	}
}

func TestTracingSampleRateOutOfRangeRejected(t *testing.T) {
	config := validBaseConfig()
	config.Tracing = TracingConfig{Enabled: true, ServiceName: "forensiq", BatchTimeout: "5s", SampleRate: 2}

	err := ValidateConfig(config)
	if err == nil {
		t.Fatal("Out-of-range sample rate should fail validation")
	}
	if !strings.Contains(err.Error(), "sample rate") {
		t.Errorf("Expected sample rate error, got: %v", err)
	}
}
