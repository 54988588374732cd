package index

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultSparseConcurrency bounds the number of in-flight HTTP GETs
// during a sparse-index refresh, mirroring the host tool's multi-handle
// pipelining without needing a dedicated curl-multi equivalent.
const defaultSparseConcurrency = 8

// SparseIndex is the in-memory Sparse Registry variant: a map from crate
// name to its sorted, unyanked version list, populated by Refresh.
type SparseIndex struct {
	mu       sync.RWMutex
	versions map[string][]*semver.Version
}

// NewSparseIndex returns an empty sparse index ready for Refresh.
func NewSparseIndex() *SparseIndex {
	return &SparseIndex{versions: make(map[string][]*semver.Version)}
}

func (s *SparseIndex) IsSparse() bool { return true }

func (s *SparseIndex) Versions(name string) ([]*semver.Version, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[name]
	return v, ok, nil
}

// SparseConfig carries the HTTP transport settings consumed by Refresh.
type SparseConfig struct {
	AuthToken   string // Authorization header value, already resolved by the credential chain
	ProxyURL    string
	CAInfo      string
	CheckRevoke bool // carried for parity with cargoconfig.HTTPConfig; not applied to the transport
	Concurrency int
}

// MissingPackageError reports a package absent per HTTP 404/410/451.
type MissingPackageError struct{ Package string }

func (e *MissingPackageError) Error() string { return fmt.Sprintf("package %s doesn't exist", e.Package) }

// Refresh issues one HTTP GET per package in packages, bounded to
// cfg.Concurrency in flight at once, writing a "." to progress for each
// completed request under a shared mutex (spec.md §4.4, §5). The first
// fatal error (anything but a clean 200 or a 404/410/451 absence) aborts
// the whole refresh.
func (s *SparseIndex) Refresh(ctx context.Context, registryURL string, packages []string, cfg SparseConfig, progress io.Writer) error {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSparseConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var progressMu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, pkg := range packages {
		pkg := pkg
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			versions, err := s.fetchOne(ctx, client, registryURL, pkg, cfg)
			if progress != nil {
				progressMu.Lock()
				fmt.Fprint(progress, ".")
				progressMu.Unlock()
			}
			if err != nil {
				var missing *MissingPackageError
				if asMissing(err, &missing) {
					return nil // absent crate is not a fatal refresh error
				}
				return err
			}
			s.mu.Lock()
			s.versions[pkg] = versions
			s.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if progress != nil {
		fmt.Fprintln(progress)
	}
	return nil
}

func asMissing(err error, target **MissingPackageError) bool {
	m, ok := err.(*MissingPackageError)
	if ok {
		*target = m
	}
	return ok
}

func (s *SparseIndex) fetchOne(ctx context.Context, client *http.Client, registryURL, pkg string, cfg SparseConfig) ([]*semver.Version, error) {
	parts, err := SplitPackagePath(pkg)
	if err != nil {
		return nil, err
	}
	reqURL := registryURL
	for _, p := range parts {
		reqURL = strings.TrimSuffix(reqURL, "/") + "/" + p
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", cfg.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", pkg, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("package %s: reading response: %w", pkg, err)
		}
		versions, err := ParseCrateVersions(body)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg, err)
		}
		return versions, nil
	case http.StatusNotFound, http.StatusGone, 451:
		return nil, &MissingPackageError{Package: pkg}
	default:
		return nil, fmt.Errorf("package %s: HTTP %d", pkg, resp.StatusCode)
	}
}

func newHTTPClient(cfg SparseConfig) (*http.Client, error) {
	transport := &http.Transport{}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if cfg.CAInfo != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		pem, err := os.ReadFile(cfg.CAInfo)
		if err != nil {
			return nil, fmt.Errorf("reading cainfo %s: %w", cfg.CAInfo, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("cainfo %s contains no usable certificates", cfg.CAInfo)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	// cfg.CheckRevoke is carried through for configuration parity with
	// the host tool's http.check-revoke setting, but Go's crypto/tls has
	// no portable OCSP/CRL revocation toggle to wire it to, so it has no
	// effect on the client built here.

	return &http.Client{Transport: transport}, nil
}
