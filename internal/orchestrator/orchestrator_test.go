package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunOrdersNeedsUpdateFirstThenByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ca/rg/cargo-update"):
			w.Write([]byte(`{"vers":"1.1.0","yanked":false}` + "\n"))
		case strings.HasSuffix(r.URL.Path, "/ca/rg/cargo-release"):
			w.Write([]byte(`{"vers":"1.0.0","yanked":false}` + "\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cargoDir := t.TempDir()
	writeFile(t, filepath.Join(cargoDir, "config"), `
[source.test]
registry = "`+srv.URL+`"

[registries.test]
index = "sparse+`+srv.URL+`"
`)

	manifestPath := filepath.Join(cargoDir, ".crates.toml")
	writeFile(t, manifestPath, `
[v1]
"cargo-update 1.0.0 (registry+`+srv.URL+`)" = ["cargo-update"]
"cargo-release 1.0.0 (registry+`+srv.URL+`)" = ["cargo-release"]
`)

	plan, err := Run(context.Background(), Options{
		CargoDir:     cargoDir,
		ManifestPath: manifestPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Decisions) != 2 {
		t.Fatalf("got %d decisions, want 2: %+v", len(plan.Decisions), plan.Decisions)
	}
	if !plan.Decisions[0].NeedsUpdate || plan.Decisions[0].Name != "cargo-update" {
		t.Errorf("decisions[0] = %+v, want cargo-update needing update first", plan.Decisions[0])
	}
	if plan.Decisions[1].NeedsUpdate || plan.Decisions[1].Name != "cargo-release" {
		t.Errorf("decisions[1] = %+v, want cargo-release not needing update second", plan.Decisions[1])
	}
}

func TestRunIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vers":"1.0.0","yanked":false}` + "\n"))
	}))
	defer srv.Close()

	cargoDir := t.TempDir()
	writeFile(t, filepath.Join(cargoDir, "config"), `
[source.test]
registry = "`+srv.URL+`"

[registries.test]
index = "sparse+`+srv.URL+`"
`)
	manifestPath := filepath.Join(cargoDir, ".crates.toml")
	writeFile(t, manifestPath, `
[v1]
"cargo-update 1.0.0 (registry+`+srv.URL+`)" = ["cargo-update"]
`)

	opts := Options{CargoDir: cargoDir, ManifestPath: manifestPath}
	first, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Decisions) != len(second.Decisions) || first.Decisions[0] != second.Decisions[0] {
		t.Errorf("two runs with no upstream change produced different plans: %+v vs %+v", first, second)
	}
}

func TestRunUnknownRegistryRecordsErrorRatherThanAborting(t *testing.T) {
	cargoDir := t.TempDir()
	manifestPath := filepath.Join(cargoDir, ".crates.toml")
	writeFile(t, manifestPath, `
[v1]
"mystery 1.0.0 (registry+https://example.com/unknown-index)" = ["mystery"]
`)

	plan, err := Run(context.Background(), Options{CargoDir: cargoDir, ManifestPath: manifestPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Decisions) != 1 || plan.Decisions[0].Err == nil {
		t.Fatalf("expected one decision carrying a resolution error, got %+v", plan.Decisions)
	}
}
