package config

import (
	"os"
	"testing"
)

func TestDefaultConfigsEnabled(t *testing.T) {
	config := &Config{}
	trueVal := true
	config.App.DefaultConfigs = &trueVal

	applyDefaults(config)

	if config.App.Name != "forensiq" {
		t.Errorf("Expected default app name, got %s", config.App.Name)
	}
	if config.Server.Port != 8420 {
		t.Errorf("Expected default server port 8420, got %d", config.Server.Port)
	}
	if config.Orchestrator.MaxConcurrentAnalyses != 5 {
		t.Errorf("Expected default max concurrent analyses 5, got %d", config.Orchestrator.MaxConcurrentAnalyses)
	}
}

func TestDefaultConfigsDisabled(t *testing.T) {
	config := &Config{}
	falseVal := false
	config.App.DefaultConfigs = &falseVal

	applyDefaults(config)

	if config.App.Name != "" {
		t.Errorf("Expected empty app name with defaults disabled, got %s", config.App.Name)
	}
	if config.Server.Port != 0 {
		t.Errorf("Expected zero server port with defaults disabled, got %d", config.Server.Port)
	}
	if config.Orchestrator.MaxConcurrentAnalyses != 0 {
		t.Errorf("Expected zero max concurrent analyses with defaults disabled, got %d", config.Orchestrator.MaxConcurrentAnalyses)
	}
}

func TestDefaultConfigsNil(t *testing.T) {
	config := &Config{}

	applyDefaults(config)

	if config.App.Name != "forensiq" {
		t.Errorf("Expected default app name with nil defaults, got %s", config.App.Name)
	}
	if config.Server.Port != 8420 {
		t.Errorf("Expected default server port with nil defaults, got %d", config.Server.Port)
	}
}

func TestDefaultConfigsEnvironmentOverride(t *testing.T) {
	os.Setenv("FORENSIQ_DEFAULT_CONFIGS", "false")
	defer os.Unsetenv("FORENSIQ_DEFAULT_CONFIGS")

	config := &Config{}
	trueVal := true
	config.App.DefaultConfigs = &trueVal

	if shouldApplyDefaults(config) {
		t.Error("Expected shouldApplyDefaults to return false (env override)")
	}

	applyDefaults(config)

	if config.App.Name != "" {
		t.Errorf("Expected empty app name with env override, got %s", config.App.Name)
	}
}

func TestDefaultPluginHostSettings(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	if config.PluginHost.CacheSize != 256 {
		t.Errorf("Expected default plugin host cache size 256, got %d", config.PluginHost.CacheSize)
	}
	if config.PluginHost.MaxWallClock != "30s" {
		t.Errorf("Expected default max wall clock 30s, got %s", config.PluginHost.MaxWallClock)
	}
}

func TestToPluginHostConfigTranslatesSettings(t *testing.T) {
	config := &Config{}
	applyDefaults(config)
	config.PluginHost.MaxMemoryMiB = 200

	pc := config.ToPluginHostConfig()
	if pc.SandboxLimits.MaxMemoryMiB != 200 {
		t.Errorf("Expected translated max memory 200, got %d", pc.SandboxLimits.MaxMemoryMiB)
	}
}
