package config

import (
	"os"
	"testing"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 0},
		Storage: StorageConfig{Driver: "file", DataDir: "data"},
		Ollama:  BackendConfig{BaseURL: "http://localhost:11434"},
		Qdrant:  BackendConfig{BaseURL: "http://localhost:6333"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Storage: StorageConfig{Driver: "etcd"},
		Ollama:  BackendConfig{BaseURL: "http://localhost:11434"},
		Qdrant:  BackendConfig{BaseURL: "http://localhost:6333"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}

	expected := `storage.driver must be "file" or "redis", got "etcd"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_RedisDriverRequiresAddrs(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Storage: StorageConfig{Driver: "redis"},
		Ollama:  BackendConfig{BaseURL: "http://localhost:11434"},
		Qdrant:  BackendConfig{BaseURL: "http://localhost:6333"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("default port: got %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Storage.Driver != "file" {
		t.Errorf("default driver: got %q, want file", cfg.Storage.Driver)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("default ollama url: got %q", cfg.Ollama.BaseURL)
	}
	if cfg.Qdrant.BaseURL != "http://localhost:6333" {
		t.Errorf("default qdrant url: got %q", cfg.Qdrant.BaseURL)
	}
	if cfg.Query.DefaultLimit != 5 {
		t.Errorf("default query limit: got %d, want 5", cfg.Query.DefaultLimit)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("RAGGATE_TEST_URL", "http://ollama:11434")
	defer os.Unsetenv("RAGGATE_TEST_URL")

	in := []byte("base_url: ${RAGGATE_TEST_URL}\nother: ${RAGGATE_TEST_MISSING:-fallback}\n")
	out := string(expandEnvVars(in))

	want := "base_url: http://ollama:11434\nother: fallback\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
