package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/media"
)

func newMediaRouter(t *testing.T, opts ...MediaHandlerOption) chi.Router {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "products"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "products", "mug.avif"), []byte("avif-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	local, err := media.NewLocalResolver(root)
	if err != nil {
		t.Fatalf("local resolver: %v", err)
	}
	handler := NewMediaHandler(media.NewChain([]media.Resolver{local}), opts...)
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/media/*", handler)
	router.Method(http.MethodHead, "/media/*", handler)
	return router
}

func TestMediaHandlerServesLocalFallback(t *testing.T) {
	router := newMediaRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/mug.avif", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/avif" {
		t.Fatalf("expected image/avif, got %q", ct)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Fatalf("unexpected Cache-Control %q", cc)
	}
	if rr.Header().Get(mediaRedirectHeader) != "0" {
		t.Fatalf("expected redirect count header 0, got %q", rr.Header().Get(mediaRedirectHeader))
	}
	if rr.Header().Get(mediaSourceHeader) != "local" {
		t.Fatalf("expected local source, got %q", rr.Header().Get(mediaSourceHeader))
	}
	if rr.Body.String() != "avif-bytes" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestMediaHandlerMissingFallsBackToPlaceholder(t *testing.T) {
	router := newMediaRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/missing_photo.png", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/gif" {
		t.Fatalf("expected placeholder gif, got %q", ct)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected placeholder body")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/media/mug.avif", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("expected empty HEAD response, got %d with %d bytes", rr.Code, rr.Body.Len())
	}
}

func TestMediaHandlerRejectsTraversal(t *testing.T) {
	router := newMediaRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/a/../../etc/passwd", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMediaHandlerRedirectsImagesUntilBudgetSpent(t *testing.T) {
	router := newMediaRouter(t,
		WithCDNRedirect(func(p string) string { return "https://cdn.example.com/image/upload/" + p }),
		WithMaxRedirects(2),
		WithCacheMaxAge(0),
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/mug.avif?redirects=1", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	loc, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	if loc.Host != "cdn.example.com" || loc.Query().Get("redirects") != "2" {
		t.Fatalf("unexpected location %s", loc)
	}
	if rr.Header().Get(mediaRedirectHeader) != "2" {
		t.Fatalf("expected redirect count 2, got %q", rr.Header().Get(mediaRedirectHeader))
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/mug.avif?redirects=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected proxied response once the budget is spent, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/media/mug.avif", nil)
	req.Header.Set(mediaRedirectHeader, "5")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected header count to stop redirects, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/catalog.pdf", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected non images to be proxied, got %d", rr.Code)
	}
}
