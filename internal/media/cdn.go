package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// CDNConfig configures the image CDN lookup.
type CDNConfig struct {
	// CloudName builds the default base URL https://res.cloudinary.com/{cloud}/image/upload.
	CloudName string
	// BaseURL overrides the base URL derived from CloudName.
	BaseURL string
	// VendorPrefix is the folder uploads were stored under, tried before the bare path.
	VendorPrefix string
	HTTPClient   *http.Client
}

// CDNResolver queries an image CDN over HTTP.
type CDNResolver struct {
	base   string
	prefix string
	client *http.Client
}

// NewCDNResolver builds the resolver. Either CloudName or BaseURL is required.
func NewCDNResolver(cfg CDNConfig) (*CDNResolver, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		cloud := strings.TrimSpace(cfg.CloudName)
		if cloud == "" {
			return nil, errors.New("media/cdn: cloud name or base url is required")
		}
		base = "https://res.cloudinary.com/" + cloud + "/image/upload"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &CDNResolver{
		base:   base,
		prefix: strings.Trim(strings.TrimSpace(cfg.VendorPrefix), "/"),
		client: client,
	}, nil
}

func (r *CDNResolver) Name() string { return "cdn" }

// URL returns the direct CDN address of p.
func (r *CDNResolver) URL(p string) string {
	return r.base + "/" + strings.TrimLeft(p, "/")
}

// variants lists the CDN URLs for p: with and without the vendor prefix, with and without the
// file extension.
func (r *CDNResolver) variants(p string) []string {
	p = strings.TrimLeft(p, "/")
	stripped := strings.TrimSuffix(p, path.Ext(p))
	paths := []string{p, stripped}
	if r.prefix != "" {
		paths = []string{r.prefix + "/" + p, r.prefix + "/" + stripped, p, stripped}
	}
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, v := range paths {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, r.URL(v))
	}
	return out
}

func (r *CDNResolver) Resolve(ctx context.Context, p string) (Object, error) {
	var lastErr error
	for _, u := range r.variants(p) {
		obj, err := r.fetch(ctx, u, p)
		if err == nil {
			return obj, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
		if ctx.Err() != nil {
			return Object{}, ctx.Err()
		}
	}
	if lastErr != nil {
		return Object{}, lastErr
	}
	return Object{}, ErrNotFound
}

func (r *CDNResolver) fetch(ctx context.Context, u, p string) (Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Object{}, fmt.Errorf("media/cdn: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Object{}, fmt.Errorf("media/cdn: get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Object{}, ErrNotFound
	default:
		return Object{}, fmt.Errorf("media/cdn: get %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
	if err != nil {
		return Object{}, fmt.Errorf("media/cdn: read %s: %w", u, err)
	}
	return Object{Body: body, ContentType: pickContentType(resp.Header.Get("Content-Type"), p), Source: r.Name()}, nil
}
