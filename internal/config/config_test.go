package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.APIPort != 8090 {
		t.Errorf("APIPort: got %d, want 8090", cfg.APIPort)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.MaxBodyBytes != 10<<20 {
		t.Errorf("MaxBodyBytes: got %d", cfg.MaxBodyBytes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.StorePath != "mappings.db" {
		t.Errorf("StorePath: got %s", cfg.StorePath)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize: got %d", cfg.CacheSize)
	}
	if cfg.APIToken != "" {
		t.Error("APIToken should default to empty")
	}
	if len(cfg.Extensions) != 13 {
		t.Errorf("Extensions: got %d entries, want 13", len(cfg.Extensions))
	}
	if cfg.Addr() != "127.0.0.1:8090" {
		t.Errorf("Addr: got %s", cfg.Addr())
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("BIND_ADDRESS", "0.0.0.0")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_PATH", "")
	t.Setenv("FILE_EXTENSIONS", "md, .TXT,,csv")
	t.Setenv("CACHE_SIZE", "0")

	cfg := defaults()
	loadEnv(cfg)

	if cfg.APIPort != 9999 {
		t.Errorf("APIPort: got %d", cfg.APIPort)
	}
	if cfg.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.APIToken != "secret" {
		t.Errorf("APIToken: got %s", cfg.APIToken)
	}
	if cfg.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes: got %d", cfg.MaxBodyBytes)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.StorePath != "" {
		t.Errorf("StorePath: explicit empty should select in-memory, got %q", cfg.StorePath)
	}
	if cfg.CacheSize != 0 {
		t.Errorf("CacheSize: got %d, want 0", cfg.CacheSize)
	}
	if want := []string{".md", ".txt", ".csv"}; !reflect.DeepEqual(cfg.Extensions, want) {
		t.Errorf("Extensions: got %v, want %v", cfg.Extensions, want)
	}
}

func TestLoadEnv_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv("API_PORT", "not-a-port")
	t.Setenv("MAX_BODY_BYTES", "-5")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.APIPort != 8090 {
		t.Errorf("APIPort: got %d, want default", cfg.APIPort)
	}
	if cfg.MaxBodyBytes != 10<<20 {
		t.Errorf("MaxBodyBytes: got %d, want default", cfg.MaxBodyBytes)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"apiPort":7000,"storePath":"x.db","extensions":[".md"]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("API_PORT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 7000 {
		t.Errorf("APIPort: got %d, want 7000", cfg.APIPort)
	}
	if cfg.StorePath != "x.db" {
		t.Errorf("StorePath: got %s", cfg.StorePath)
	}
	if len(cfg.Extensions) != 1 {
		t.Errorf("Extensions: got %v", cfg.Extensions)
	}
	if cfg.LogLevel == "" {
		t.Error("fields absent from the file should keep their defaults")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"apiPort":7000}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("API_PORT", "7100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPort != 7100 {
		t.Errorf("APIPort: got %d, want 7100", cfg.APIPort)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_DefaultFileOptional(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddress == "" {
		t.Error("expected defaults")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
