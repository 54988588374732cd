package index

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSparseIndexRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ca/rg/cargo-update"):
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("missing auth header, got %q", got)
			}
			w.Write([]byte(`{"vers":"1.1.0","yanked":false}` + "\n" + `{"vers":"1.0.0","yanked":false}` + "\n"))
		case strings.HasSuffix(r.URL.Path, "/mi/ss/missing-crate"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	idx := NewSparseIndex()
	var progress strings.Builder
	err := idx.Refresh(context.Background(), srv.URL, []string{"cargo-update", "missing-crate"}, SparseConfig{
		AuthToken: "Bearer tok",
	}, &progress)
	if err != nil {
		t.Fatal(err)
	}

	versions, ok, err := idx.Versions("cargo-update")
	if err != nil || !ok || len(versions) != 2 || versions[0].String() != "1.0.0" {
		t.Errorf("unexpected versions: %v ok=%v err=%v", versions, ok, err)
	}

	if _, ok, err := idx.Versions("missing-crate"); ok || err != nil {
		t.Error("missing-crate should not be present in the index")
	}

	if got := progress.String(); len(got) < 2 || !strings.Contains(got, ".") {
		t.Errorf("expected progress dots, got %q", got)
	}
}

func TestSparseIndexRefreshFatalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := NewSparseIndex()
	err := idx.Refresh(context.Background(), srv.URL, []string{"cargo-update"}, SparseConfig{}, io.Discard)
	if err == nil {
		t.Fatal("expected fatal error for HTTP 500")
	}
}
