package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type speechTestConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Speech        struct {
		Default  string `mapstructure:"default"`
		Fallback string `mapstructure:"fallback"`
	} `mapstructure:"speech"`
}

func TestLoadConfig_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte("name: narrator\nenvironment: staging\nspeech:\n  default: elevenlabs\n  fallback: \"tone\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	var cfg speechTestConfig
	if err := LoadConfig("narrator", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "narrator" {
		t.Errorf("expected name narrator, got %s", cfg.Name)
	}
	if cfg.Speech.Default != "elevenlabs" {
		t.Errorf("expected default elevenlabs, got %s", cfg.Speech.Default)
	}
	if cfg.Speech.Fallback != "tone" {
		t.Errorf("expected fallback tone, got %s", cfg.Speech.Fallback)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SPEECH_DEFAULT", "tone")

	var cfg speechTestConfig
	if err := LoadConfig("narrator", &cfg, WithConfigFile(filepath.Join(t.TempDir(), "missing.yml"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Speech.Default != "tone" {
		t.Errorf("expected env override tone, got %s", cfg.Speech.Default)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("SPEECH_DEFAULT")
	want := []string{"speech_default", "speech.default"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = envKeyVariants("PLAIN")
	if !reflect.DeepEqual(got, []string{"plain"}) {
		t.Errorf("expected [plain], got %v", got)
	}
}

func TestServiceConfig_ApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Name: "narrator"}
	cfg.ApplyDefaults()

	if cfg.Environment != "development" {
		t.Errorf("expected development, got %s", cfg.Environment)
	}
	if !cfg.Debug {
		t.Error("expected debug enabled in development")
	}
	if cfg.Logging.ServiceName != "narrator" {
		t.Errorf("expected logging service name propagated, got %s", cfg.Logging.ServiceName)
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	cfg := ServiceConfig{Name: "narrator", Environment: "production"}
	cfg.Logging.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg = ServiceConfig{Environment: "production"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing name")
	}

	cfg = ServiceConfig{Name: "narrator", Environment: "qa"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid environment")
	}
}
