package toolconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "table" || cfg.SparseConcurrency != 8 || !cfg.Verify {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "cargo_home: /custom/cargo\ndowndate: true\noutput: json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CargoHome != "/custom/cargo" || !cfg.Downdate || cfg.Output != "json" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Verify != true {
		t.Errorf("expected unset fields to keep their default, got Verify=%v", cfg.Verify)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("nonexistent_field: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognised config key")
	}
}
