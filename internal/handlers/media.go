package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/upfront-market/api/internal/media"
	"github.com/upfront-market/api/internal/platform/httpx"
)

const (
	mediaRedirectHeader = "X-Media-Redirect-Count"
	mediaRedirectParam  = "redirects"
	mediaSourceHeader   = "X-Media-Source"

	defaultMediaCacheMaxAge = 24 * time.Hour
	defaultMediaRedirects   = 3
)

// MediaHandler serves /media/* through the resolver chain, optionally bouncing images to the CDN first.
type MediaHandler struct {
	chain        *media.Chain
	cdnURL       func(string) string
	maxRedirects int
	cacheMaxAge  time.Duration
}

// MediaHandlerOption customises MediaHandler.
type MediaHandlerOption func(*MediaHandler)

// WithCDNRedirect redirects image requests to the address built by urlFor until the redirect budget
// is spent.
func WithCDNRedirect(urlFor func(string) string) MediaHandlerOption {
	return func(h *MediaHandler) {
		h.cdnURL = urlFor
	}
}

// WithMaxRedirects sets the redirect count after which requests are always proxied.
func WithMaxRedirects(n int) MediaHandlerOption {
	return func(h *MediaHandler) {
		if n > 0 {
			h.maxRedirects = n
		}
	}
}

// WithCacheMaxAge sets the Cache-Control max-age of served objects.
func WithCacheMaxAge(d time.Duration) MediaHandlerOption {
	return func(h *MediaHandler) {
		if d > 0 {
			h.cacheMaxAge = d
		}
	}
}

// NewMediaHandler constructs the media proxy.
func NewMediaHandler(chain *media.Chain, opts ...MediaHandlerOption) *MediaHandler {
	h := &MediaHandler{
		chain:        chain,
		maxRedirects: defaultMediaRedirects,
		cacheMaxAge:  defaultMediaCacheMaxAge,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.chain == nil {
		writeUnavailable(ctx, w, "media")
		return
	}

	raw := chi.URLParam(r, "*")
	if raw == "" {
		raw = strings.TrimPrefix(r.URL.Path, "/media/")
	}
	p, err := media.CleanPath(raw)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_media_path", "media path is invalid", http.StatusBadRequest))
		return
	}

	count := redirectCount(r)
	w.Header().Set(mediaRedirectHeader, strconv.Itoa(count))

	if h.cdnURL != nil && count < h.maxRedirects && media.IsImage(p) {
		target, err := url.Parse(h.cdnURL(p))
		if err == nil {
			query := target.Query()
			query.Set(mediaRedirectParam, strconv.Itoa(count+1))
			target.RawQuery = query.Encode()
			w.Header().Set(mediaRedirectHeader, strconv.Itoa(count+1))
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}
	}

	obj := h.chain.Fetch(ctx, p)
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.cacheMaxAge/time.Second)))
	if obj.Source != "" {
		w.Header().Set(mediaSourceHeader, obj.Source)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(obj.Body)
}

// redirectCount reads the loop guard from the query string, falling back to the header.
func redirectCount(r *http.Request) int {
	for _, raw := range []string{r.URL.Query().Get(mediaRedirectParam), r.Header.Get(mediaRedirectHeader)} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
