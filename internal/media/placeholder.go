package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const (
	defaultPlaceholderURL = "https://placehold.co"
	placeholderSource     = "placeholder"
	maxPlaceholderText    = 10
)

// transparentGIF is a 1x1 transparent GIF.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x01, 0x44, 0x00, 0x3b,
}

// Placeholder renders a stand-in image for missing media.
type Placeholder struct {
	// BaseURL is the placeholder service. Empty disables the remote fetch.
	BaseURL string
	Client  *http.Client
}

// NewPlaceholder returns a placeholder backed by baseURL, defaulting to placehold.co.
func NewPlaceholder(baseURL string, client *http.Client) *Placeholder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultPlaceholderURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Placeholder{BaseURL: baseURL, Client: client}
}

// PlaceholderText derives the label from the file name: everything before the first underscore,
// or before the extension when there is none, capped at ten characters.
func PlaceholderText(p string) string {
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "." || name == "/" || name == "" {
		name = "unknown"
	}
	if i := strings.Index(name, "_"); i >= 0 {
		name = name[:i]
	} else if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	runes := []rune(name)
	if len(runes) > maxPlaceholderText {
		runes = runes[:maxPlaceholderText]
	}
	return string(runes)
}

// Render never fails: when the remote service is unreachable it returns the embedded GIF.
func (p *Placeholder) Render(ctx context.Context, mediaPath string) Object {
	if p != nil && p.BaseURL != "" {
		if obj, err := p.fetch(ctx, mediaPath); err == nil {
			return obj
		}
	}
	return Object{Body: append([]byte(nil), transparentGIF...), ContentType: "image/gif", Source: placeholderSource}
}

func (p *Placeholder) fetch(ctx context.Context, mediaPath string) (Object, error) {
	u := p.BaseURL + "/400x400/EEE/999?text=" + url.QueryEscape(PlaceholderText(mediaPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Object{}, err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Object{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Object{}, fmt.Errorf("media/placeholder: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
	if err != nil {
		return Object{}, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return Object{Body: body, ContentType: contentType, Source: placeholderSource}, nil
}
