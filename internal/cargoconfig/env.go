package cargoconfig

import (
	"os"
	"strings"
)

// applyEnv layers the fixed set of recognised environment variables over
// cfg, environment winning over whatever the TOML layer produced.
func applyEnv(cfg *CargoConfig, parsed *rawTOML) {
	if v, ok := os.LookupEnv(envPrefix + "NET_GIT_FETCH_WITH_CLI"); ok {
		cfg.GitFetchWithCLI = Truthy(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "HTTP_CAINFO"); ok {
		cfg.HTTP.CAInfo = v
	}
	if v, ok := os.LookupEnv(envPrefix + "HTTP_CHECK_REVOKE"); ok {
		cfg.HTTP.CheckRevoke = Truthy(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "HTTP_PROXY"); ok {
		cfg.HTTP.Proxy = v
	}
	if v, ok := os.LookupEnv(envPrefix + "REGISTRIES_CRATES_IO_PROTOCOL"); ok {
		cfg.CratesIOProtocolSparse = v == "sparse"
	}

	if v, ok := os.LookupEnv(envPrefix + "REGISTRY_TOKEN"); ok && v != "" {
		cfg.Credentials.EnvTokens["crates-io"] = v
	}
	if v, ok := os.LookupEnv(envPrefix + "REGISTRY_CREDENTIAL_PROVIDER"); ok && v != "" {
		cfg.Credentials.Providers["crates-io"] = []AuthProvider{ParseAuthProvider(v, cfg.Credentials.Aliases)}
	}

	names := make(map[string]bool, len(parsed.Registries)+1)
	names["crates-io"] = true
	for name := range parsed.Registries {
		names[name] = true
	}
	for name := range names {
		key := NormaliseEnvName(name)
		if v, ok := os.LookupEnv(envPrefix + "REGISTRIES_" + key + "_TOKEN"); ok && v != "" {
			cfg.Credentials.EnvTokens[name] = v
		}
		if v, ok := os.LookupEnv(envPrefix + "REGISTRIES_" + key + "_CREDENTIAL_PROVIDER"); ok && v != "" {
			cfg.Credentials.Providers[name] = []AuthProvider{ParseAuthProvider(v, cfg.Credentials.Aliases)}
		}
	}

	const aliasPrefix = envPrefix + "CREDENTIAL_ALIAS_"
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, aliasPrefix) || v == "" {
			continue
		}
		norm := strings.TrimPrefix(k, aliasPrefix)
		cfg.Credentials.Aliases[norm] = strings.Fields(v)
		cfg.Credentials.Aliases[strings.ToLower(strings.ReplaceAll(norm, "_", "-"))] = strings.Fields(v)
	}
}

// ResolveProxy chases the host tool's proxy-discovery precedence:
// CARGO_HTTP_PROXY wins (applyEnv has already layered it over the
// `http.proxy` config value), then `http.proxy`, then the conventional
// HTTPS_PROXY/https_proxy/HTTP_PROXY/http_proxy environment variables.
func ResolveProxy(cfg *CargoConfig) string {
	if cfg.HTTP.Proxy != "" {
		return cfg.HTTP.Proxy
	}
	for _, name := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
