package cargoconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruthy(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"1":     true,
		"true":  true,
		"yes":   true,
	}
	for in, want := range cases {
		if got := Truthy(in); got != want {
			t.Errorf("Truthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormaliseEnvName(t *testing.T) {
	cases := map[string]string{
		"crates-io":      "CRATES_IO",
		"my.registry":    "MY_REGISTRY",
		"already_upper":  "ALREADY_UPPER",
	}
	for in, want := range cases {
		if got := NormaliseEnvName(in); got != want {
			t.Errorf("NormaliseEnvName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormaliseEnvNameIdempotent(t *testing.T) {
	x := "my-weird.Name"
	once := NormaliseEnvName(x)
	twice := NormaliseEnvName(once)
	if once != twice {
		t.Errorf("NormaliseEnvName not idempotent: %q != %q", once, twice)
	}
}

func TestParseAuthProvider(t *testing.T) {
	aliases := map[string][]string{"my-alias": {"my-helper", "--flag"}}

	cases := []struct {
		in   string
		kind AuthProviderKind
	}{
		{"cargo:token", Token},
		{"cargo:wincred", Wincred},
		{"cargo:macos-keychain", MacosKeychain},
		{"cargo:libsecret", Libsecret},
		{"cargo:token-from-stdout my-helper --arg", TokenFromStdout},
		{"some-external-helper --arg", Provider},
	}
	for _, c := range cases {
		got := ParseAuthProvider(c.in, aliases)
		if got.Kind != c.kind {
			t.Errorf("ParseAuthProvider(%q).Kind = %v, want %v", c.in, got.Kind, c.kind)
		}
	}

	p := ParseAuthProvider("my-alias", aliases)
	if p.Kind != Provider || len(p.Argv) != 2 || p.Argv[0] != "my-helper" {
		t.Errorf("alias substitution failed: %+v", p)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GitFetchWithCLI {
		t.Error("expected git-fetch-with-cli default false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[net]
git-fetch-with-cli = true

[http]
cainfo = "/etc/ssl/ca.pem"

[registries.my-registry]
index = "sparse+https://example.com/index/"
token = "filetoken"
`
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.GitFetchWithCLI {
		t.Error("expected git-fetch-with-cli true from file")
	}
	if cfg.HTTP.CAInfo != "/etc/ssl/ca.pem" {
		t.Errorf("CAInfo = %q", cfg.HTTP.CAInfo)
	}
	if cfg.Credentials.FileTokens["my-registry"] != "filetoken" {
		t.Errorf("file token not loaded: %+v", cfg.Credentials.FileTokens)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := "[net]\ngit-fetch-with-cli = false\n"
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARGO_NET_GIT_FETCH_WITH_CLI", "true")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.GitFetchWithCLI {
		t.Error("expected env var to override file value")
	}
}

func TestLoadCratesIOProtocolFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "[registries.crates-io]\nprotocol = \"sparse\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.CratesIOProtocolSparse {
		t.Error("expected registries.crates-io.protocol = \"sparse\" in the config file to enable sparse mode")
	}
}

func TestEnvOverridesCratesIOProtocolFile(t *testing.T) {
	dir := t.TempDir()
	content := "[registries.crates-io]\nprotocol = \"sparse\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARGO_REGISTRIES_CRATES_IO_PROTOCOL", "git")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CratesIOProtocolSparse {
		t.Error("expected env var to override file protocol setting")
	}
}

func TestResolveCargoHomeCycle(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	if err := os.WriteFile(filepath.Join(a, "config"), []byte(`[install]
root = "`+b+`"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(b, "config"), []byte(`[install]
root = "`+a+`"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveCargoHome(a); err == nil {
		t.Fatal("expected cycle error")
	}
}
