// Package config loads and validates forensiq's runtime configuration:
// YAML file, then environment variable overrides, then validation,
// matching the teacher's LoadConfig -> applyDefaults ->
// applyEnvironmentOverrides -> ValidateConfig pipeline, restructured
// around the analysis engine's own sections instead of log-shipping
// sinks and monitors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"forensiq/internal/orchestrator"
	"forensiq/internal/pluginhost"
	"forensiq/pkg/errors"
)

// AppConfig holds process identity and logging knobs.
type AppConfig struct {
	Name           string `yaml:"name"`
	Version        string `yaml:"version"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	DefaultConfigs *bool  `yaml:"default_configs"`
}

// ServerConfig is the HTTP front door controllers submit analyses and
// rules through.
type ServerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// MetricsConfig exposes the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// PersistenceConfig selects the relational-store adapter (spec §6).
type PersistenceConfig struct {
	Driver string `yaml:"driver"` // "memory" or "postgres"
	DSN    string `yaml:"dsn"`
}

// BlobStoreConfig roots the upload blob store.
type BlobStoreConfig struct {
	Directory string `yaml:"directory"`
}

// OrchestratorConfig tunes the analysis pipeline (spec §4.F/§5).
type OrchestratorConfig struct {
	MaxConcurrentAnalyses int    `yaml:"max_concurrent_analyses"`
	DefaultTimeoutMinutes int    `yaml:"default_timeout_minutes"`
	DefaultMaxEvents      int    `yaml:"default_max_events"`
	DefaultParserID       string `yaml:"default_parser_id"`
}

// RuleEngineConfig tunes the Rule Engine dispatcher (spec §4.D).
type RuleEngineConfig struct {
	CompiledRuleCacheSize int    `yaml:"compiled_rule_cache_size"`
	RulesFile             string `yaml:"rules_file"`
	CustomDialectFallback string `yaml:"custom_dialect_fallback"`
}

// PluginHostConfig tunes the Parser Plugin Host (spec §4.B).
type PluginHostConfig struct {
	CacheSize        int      `yaml:"cache_size"`
	MaxMemoryMiB     int      `yaml:"max_memory_mib"`
	MaxWallClock     string   `yaml:"max_wall_clock"`
	MaxCPUPercent    float64  `yaml:"max_cpu_percent"`
	MaxThreads       int      `yaml:"max_threads"`
	AllowedImports   []string `yaml:"allowed_imports"`
	DeniedCapability []string `yaml:"denied_capabilities"`
}

// IOCExtractorConfig holds the IOC Extractor settings read from YAML.
// They are not passed on: the orchestrator runs extraction with
// iocextractor.DefaultConfig().
type IOCExtractorConfig struct {
	ConfidenceThreshold int      `yaml:"confidence_threshold"`
	WhitelistDomains    []string `yaml:"whitelist_domains"`
}

// MitreConfig tunes the MITRE Mapper (spec §4.E).
type MitreConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig mirrors orchestrator.TracingConfig for YAML/env wiring.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	Endpoint     string  `yaml:"endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	BatchTimeout string  `yaml:"batch_timeout"`
}

// CircuitBreakerConfig mirrors pkg/circuitbreaker.Config for YAML/env wiring.
type CircuitBreakerConfig struct {
	MaxFailures  int64  `yaml:"max_failures"`
	ResetTimeout string `yaml:"reset_timeout"`
}

// SecurityConfig gates authentication on the HTTP front door; expanded
// in the security-hardening phase the way the teacher's own
// Security.Enabled flag was.
type SecurityConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root of forensiq's configuration tree.
type Config struct {
	App            AppConfig            `yaml:"app"`
	Server         ServerConfig         `yaml:"server"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Persistence    PersistenceConfig    `yaml:"persistence"`
	BlobStore      BlobStoreConfig      `yaml:"blob_store"`
	Orchestrator   OrchestratorConfig   `yaml:"orchestrator"`
	RuleEngine     RuleEngineConfig     `yaml:"rule_engine"`
	PluginHost     PluginHostConfig     `yaml:"plugin_host"`
	IOCExtractor   IOCExtractorConfig   `yaml:"ioc_extractor"`
	Mitre          MitreConfig          `yaml:"mitre"`
	Tracing        TracingConfig        `yaml:"tracing"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Security       SecurityConfig       `yaml:"security"`
}

// LoadConfig loads YAML from configFile (if non-empty), applies
// defaults, applies environment overrides, then validates.
func LoadConfig(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		if err := loadConfigFile(configFile, config); err != nil {
			fmt.Printf("Warning: Failed to load config file %s: %v\n", configFile, err)
		} else {
			fmt.Printf("Loaded configuration from file: %s\n", configFile)
		}
	}

	applyDefaults(config)
	applyEnvironmentOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// shouldApplyDefaults mirrors the teacher's opt-out switch: an explicit
// false in either the env var or the loaded YAML disables defaulting.
func shouldApplyDefaults(config *Config) bool {
	if envValue := os.Getenv("FORENSIQ_DEFAULT_CONFIGS"); envValue != "" {
		if enabled, err := strconv.ParseBool(envValue); err == nil {
			return enabled
		}
	}
	if config.App.DefaultConfigs == nil {
		return true
	}
	return *config.App.DefaultConfigs
}

func applyDefaults(config *Config) {
	if !shouldApplyDefaults(config) {
		return
	}

	if config.App.Name == "" {
		config.App.Name = "forensiq"
	}
	if config.App.Version == "" {
		config.App.Version = "v0.1.0"
	}
	if config.App.Environment == "" {
		config.App.Environment = "production"
	}
	if config.App.LogLevel == "" {
		config.App.LogLevel = "info"
	}
	if config.App.LogFormat == "" {
		config.App.LogFormat = "json"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8420
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	config.Server.Enabled = true

	if config.Metrics.Port == 0 {
		config.Metrics.Port = 8021
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "forensiq"
	}
	config.Metrics.Enabled = true

	if config.Persistence.Driver == "" {
		config.Persistence.Driver = "memory"
	}

	if config.BlobStore.Directory == "" {
		config.BlobStore.Directory = "/var/lib/forensiq/uploads"
	}

	if config.Orchestrator.MaxConcurrentAnalyses == 0 {
		config.Orchestrator.MaxConcurrentAnalyses = 5
	}
	if config.Orchestrator.DefaultTimeoutMinutes == 0 {
		config.Orchestrator.DefaultTimeoutMinutes = 30
	}
	if config.Orchestrator.DefaultMaxEvents == 0 {
		config.Orchestrator.DefaultMaxEvents = 100_000
	}

	if config.RuleEngine.CompiledRuleCacheSize == 0 {
		config.RuleEngine.CompiledRuleCacheSize = 1024
	}
	if config.RuleEngine.RulesFile == "" {
		config.RuleEngine.RulesFile = "rules.yaml"
	}
	if config.RuleEngine.CustomDialectFallback == "" {
		config.RuleEngine.CustomDialectFallback = "structured"
	}

	if config.PluginHost.CacheSize == 0 {
		config.PluginHost.CacheSize = 256
	}
	if config.PluginHost.MaxMemoryMiB == 0 {
		config.PluginHost.MaxMemoryMiB = 100
	}
	if config.PluginHost.MaxWallClock == "" {
		config.PluginHost.MaxWallClock = "30s"
	}
	if config.PluginHost.MaxCPUPercent == 0 {
		config.PluginHost.MaxCPUPercent = 50
	}
	if config.PluginHost.MaxThreads == 0 {
		config.PluginHost.MaxThreads = 10
	}

	if config.IOCExtractor.ConfidenceThreshold == 0 {
		config.IOCExtractor.ConfidenceThreshold = 40
	}

	config.Mitre.Enabled = true

	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "forensiq"
	}
	if config.Tracing.Endpoint == "" {
		config.Tracing.Endpoint = "http://localhost:4318"
	}
	if config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = 1.0
	}
	if config.Tracing.BatchTimeout == "" {
		config.Tracing.BatchTimeout = "5s"
	}

	if config.CircuitBreaker.MaxFailures == 0 {
		config.CircuitBreaker.MaxFailures = 5
	}
	if config.CircuitBreaker.ResetTimeout == "" {
		config.CircuitBreaker.ResetTimeout = "30s"
	}
}

func applyEnvironmentOverrides(config *Config) {
	config.App.Name = getEnvString("FORENSIQ_APP_NAME", config.App.Name)
	config.App.Version = getEnvString("FORENSIQ_APP_VERSION", config.App.Version)
	config.App.Environment = getEnvString("FORENSIQ_APP_ENVIRONMENT", config.App.Environment)
	config.App.LogLevel = getEnvString("FORENSIQ_LOG_LEVEL", config.App.LogLevel)
	config.App.LogFormat = getEnvString("FORENSIQ_LOG_FORMAT", config.App.LogFormat)

	config.Server.Enabled = getEnvBool("FORENSIQ_SERVER_ENABLED", config.Server.Enabled)
	config.Server.Host = getEnvString("FORENSIQ_SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("FORENSIQ_SERVER_PORT", config.Server.Port)

	config.Metrics.Enabled = getEnvBool("FORENSIQ_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Port = getEnvInt("FORENSIQ_METRICS_PORT", config.Metrics.Port)
	config.Metrics.Path = getEnvString("FORENSIQ_METRICS_PATH", config.Metrics.Path)
	config.Metrics.Namespace = getEnvString("FORENSIQ_METRICS_NAMESPACE", config.Metrics.Namespace)

	config.Persistence.Driver = getEnvString("FORENSIQ_PERSISTENCE_DRIVER", config.Persistence.Driver)
	config.Persistence.DSN = getEnvString("FORENSIQ_PERSISTENCE_DSN", config.Persistence.DSN)

	config.BlobStore.Directory = getEnvString("FORENSIQ_BLOB_STORE_DIRECTORY", config.BlobStore.Directory)

	config.Orchestrator.MaxConcurrentAnalyses = getEnvInt("FORENSIQ_ORCHESTRATOR_MAX_CONCURRENT", config.Orchestrator.MaxConcurrentAnalyses)
	config.Orchestrator.DefaultTimeoutMinutes = getEnvInt("FORENSIQ_ORCHESTRATOR_TIMEOUT_MINUTES", config.Orchestrator.DefaultTimeoutMinutes)
	config.Orchestrator.DefaultMaxEvents = getEnvInt("FORENSIQ_ORCHESTRATOR_MAX_EVENTS", config.Orchestrator.DefaultMaxEvents)
	config.Orchestrator.DefaultParserID = getEnvString("FORENSIQ_ORCHESTRATOR_DEFAULT_PARSER", config.Orchestrator.DefaultParserID)

	config.RuleEngine.RulesFile = getEnvString("FORENSIQ_RULES_FILE", config.RuleEngine.RulesFile)
	config.RuleEngine.CompiledRuleCacheSize = getEnvInt("FORENSIQ_RULE_CACHE_SIZE", config.RuleEngine.CompiledRuleCacheSize)

	config.Mitre.Enabled = getEnvBool("FORENSIQ_MITRE_ENABLED", config.Mitre.Enabled)

	config.Tracing.Enabled = getEnvBool("FORENSIQ_TRACING_ENABLED", config.Tracing.Enabled)
	config.Tracing.Endpoint = getEnvString("FORENSIQ_TRACING_ENDPOINT", config.Tracing.Endpoint)

	config.Security.Enabled = getEnvBool("FORENSIQ_SECURITY_ENABLED", config.Security.Enabled)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// ToOrchestratorConfig translates the YAML-facing shape into orchestrator.Config.
func (c *Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{MaxConcurrentAnalyses: c.Orchestrator.MaxConcurrentAnalyses}
}

// ToTracingConfig translates the YAML-facing shape into orchestrator.TracingConfig.
func (c *Config) ToTracingConfig() orchestrator.TracingConfig {
	batchTimeout, err := time.ParseDuration(c.Tracing.BatchTimeout)
	if err != nil {
		batchTimeout = 5 * time.Second
	}
	return orchestrator.TracingConfig{
		Enabled:      c.Tracing.Enabled,
		ServiceName:  c.Tracing.ServiceName,
		Endpoint:     c.Tracing.Endpoint,
		SampleRate:   c.Tracing.SampleRate,
		BatchTimeout: batchTimeout,
	}
}

// ToPluginHostConfig translates the YAML-facing shape into pluginhost.Config.
func (c *Config) ToPluginHostConfig() pluginhost.Config {
	wallClock, err := time.ParseDuration(c.PluginHost.MaxWallClock)
	if err != nil {
		wallClock = 30 * time.Second
	}
	cfg := pluginhost.DefaultConfig()
	cfg.CacheSize = c.PluginHost.CacheSize
	cfg.SandboxLimits.MaxMemoryMiB = c.PluginHost.MaxMemoryMiB
	cfg.SandboxLimits.MaxWallClock = wallClock
	cfg.SandboxLimits.MaxCPUPercent = c.PluginHost.MaxCPUPercent
	cfg.SandboxLimits.MaxThreads = c.PluginHost.MaxThreads
	if len(c.PluginHost.AllowedImports) > 0 {
		cfg.SecurityScan.AllowedImports = c.PluginHost.AllowedImports
	}
	return cfg
}

// ValidateConfig performs comprehensive configuration validation.
func ValidateConfig(config *Config) error {
	validator := &ConfigValidator{config: config}
	return validator.Validate()
}

// ConfigValidator accumulates validation errors across every section
// before reporting, matching the teacher's accumulate-then-report style.
type ConfigValidator struct {
	config *Config
	errors []error
}

func (v *ConfigValidator) Validate() error {
	v.validateApp()
	v.validateServer()
	v.validateMetrics()
	v.validatePersistence()
	v.validateOrchestrator()
	v.validateRuleEngine()
	v.validatePluginHost()
	v.validateIOCExtractor()
	v.validateTracing()

	if len(v.errors) > 0 {
		return v.buildValidationError()
	}
	return nil
}

func (v *ConfigValidator) addError(component, operation, message string) {
	err := errors.ConfigError(operation, message).WithMetadata("component", component)
	v.errors = append(v.errors, err)
}

func (v *ConfigValidator) validateApp() {
	if v.config.App.Name == "" {
		v.addError("app", "validate_name", "application name cannot be empty")
	}
	if v.config.App.Version == "" {
		v.addError("app", "validate_version", "application version cannot be empty")
	}
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[v.config.App.LogLevel] {
		v.addError("app", "validate_log_level", fmt.Sprintf("invalid log level: %s", v.config.App.LogLevel))
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[v.config.App.LogFormat] {
		v.addError("app", "validate_log_format", fmt.Sprintf("invalid log format: %s", v.config.App.LogFormat))
	}
}

func (v *ConfigValidator) validateServer() {
	if !v.config.Server.Enabled {
		return
	}
	if v.config.Server.Port <= 0 || v.config.Server.Port > 65535 {
		v.addError("server", "validate_port", fmt.Sprintf("invalid server port: %d", v.config.Server.Port))
	}
	if v.config.Server.Host == "" {
		v.addError("server", "validate_host", "server host cannot be empty when enabled")
	}
	for field, dur := range map[string]string{"read_timeout": v.config.Server.ReadTimeout, "write_timeout": v.config.Server.WriteTimeout} {
		if dur != "" {
			if _, err := time.ParseDuration(dur); err != nil {
				v.addError("server", "validate_timeout", fmt.Sprintf("invalid %s: %s", field, dur))
			}
		}
	}
}

func (v *ConfigValidator) validateMetrics() {
	if !v.config.Metrics.Enabled {
		return
	}
	if v.config.Metrics.Port <= 0 || v.config.Metrics.Port > 65535 {
		v.addError("metrics", "validate_port", fmt.Sprintf("invalid metrics port: %d", v.config.Metrics.Port))
	}
	if v.config.Metrics.Path == "" {
		v.addError("metrics", "validate_path", "metrics path cannot be empty when enabled")
	}
	if v.config.Server.Enabled && v.config.Server.Port == v.config.Metrics.Port {
		v.addError("metrics", "validate_port_conflict", "metrics port conflicts with server port")
	}
}

func (v *ConfigValidator) validatePersistence() {
	validDrivers := map[string]bool{"memory": true, "postgres": true}
	if !validDrivers[v.config.Persistence.Driver] {
		v.addError("persistence", "validate_driver", fmt.Sprintf("unknown persistence driver: %s", v.config.Persistence.Driver))
	}
	if v.config.Persistence.Driver == "postgres" && v.config.Persistence.DSN == "" {
		v.addError("persistence", "validate_dsn", "dsn cannot be empty for the postgres driver")
	}
}

func (v *ConfigValidator) validateOrchestrator() {
	if v.config.Orchestrator.MaxConcurrentAnalyses <= 0 {
		v.addError("orchestrator", "validate_max_concurrent", "max concurrent analyses must be positive")
	}
	if v.config.Orchestrator.DefaultTimeoutMinutes <= 0 {
		v.addError("orchestrator", "validate_timeout", "default timeout minutes must be positive")
	}
	if v.config.Orchestrator.DefaultMaxEvents <= 0 {
		v.addError("orchestrator", "validate_max_events", "default max events must be positive")
	}
}

func (v *ConfigValidator) validateRuleEngine() {
	if v.config.RuleEngine.CompiledRuleCacheSize <= 0 {
		v.addError("rule_engine", "validate_cache_size", "compiled rule cache size must be positive")
	}
}

func (v *ConfigValidator) validatePluginHost() {
	if v.config.PluginHost.CacheSize <= 0 {
		v.addError("plugin_host", "validate_cache_size", "plugin host cache size must be positive")
	}
	if _, err := time.ParseDuration(v.config.PluginHost.MaxWallClock); err != nil {
		v.addError("plugin_host", "validate_wall_clock", fmt.Sprintf("invalid max wall clock: %s", v.config.PluginHost.MaxWallClock))
	}
	if v.config.PluginHost.MaxMemoryMiB <= 0 {
		v.addError("plugin_host", "validate_memory", "max memory MiB must be positive")
	}
}

func (v *ConfigValidator) validateIOCExtractor() {
	if v.config.IOCExtractor.ConfidenceThreshold < 0 || v.config.IOCExtractor.ConfidenceThreshold > 100 {
		v.addError("ioc_extractor", "validate_threshold", "confidence threshold must be within 0..100")
	}
}

func (v *ConfigValidator) validateTracing() {
	if !v.config.Tracing.Enabled {
		return
	}
	if v.config.Tracing.ServiceName == "" {
		v.addError("tracing", "validate_service_name", "service name cannot be empty when tracing is enabled")
	}
	if _, err := time.ParseDuration(v.config.Tracing.BatchTimeout); err != nil {
		v.addError("tracing", "validate_batch_timeout", fmt.Sprintf("invalid batch timeout: %s", v.config.Tracing.BatchTimeout))
	}
	if v.config.Tracing.SampleRate < 0 || v.config.Tracing.SampleRate > 1 {
		v.addError("tracing", "validate_sample_rate", "sample rate must be within 0..1")
	}
}

func (v *ConfigValidator) buildValidationError() error {
	if len(v.errors) == 1 {
		return v.errors[0]
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return errors.ConfigError("validate", fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; ")))
}
