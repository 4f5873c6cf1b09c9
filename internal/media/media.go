// Package media resolves media paths against an ordered list of storage backends.
package media

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
)

const (
	maxObjectSize      = 25 << 20
	defaultContentType = "application/octet-stream"
)

var (
	// ErrNotFound is returned by resolvers that do not hold the object.
	ErrNotFound = errors.New("media: object not found")
	// ErrInvalidPath is returned for empty paths and paths escaping the media root.
	ErrInvalidPath = errors.New("media: invalid path")
)

// Object is a resolved media payload.
type Object struct {
	Body        []byte
	ContentType string
	// Source names the resolver that produced the object.
	Source string
}

// Resolver fetches one object from one backend.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, path string) (Object, error)
}

// CleanPath normalises a request path and rejects traversal.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Candidates lists the object keys tried for p, in order and without duplicates: the literal
// path, the path with the products/ prefix toggled, the path with the media/ prefix toggled,
// then underscore and hyphen variants of each.
func Candidates(p string) []string {
	base := strings.TrimLeft(p, "/")
	if base == "" {
		return nil
	}
	out := make([]string, 0, 12)
	seen := make(map[string]struct{}, 12)
	add := func(c string) {
		c = strings.TrimLeft(c, "/")
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	add(base)
	if rest, ok := strings.CutPrefix(base, "products/"); ok {
		add(rest)
	} else {
		add("products/" + base)
	}
	if rest, ok := strings.CutPrefix(base, "media/"); ok {
		add(rest)
	} else {
		add("media/" + base)
	}

	primary := append([]string(nil), out...)
	for _, c := range primary {
		dir, file := path.Split(c)
		if strings.Contains(file, "_") {
			add(dir + strings.ReplaceAll(file, "_", "-"))
		}
		if strings.Contains(file, "-") {
			add(dir + strings.ReplaceAll(file, "-", "_"))
		}
	}
	return out
}

// ContentTypeFor infers the content type from the file extension.
func ContentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == ".avif" {
		return "image/avif"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}

// IsImage reports whether the path names a raster image served through the CDN.
func IsImage(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".avif", ".gif":
		return true
	}
	return false
}

func pickContentType(reported, p string) string {
	reported = strings.TrimSpace(reported)
	if reported == "" || strings.HasPrefix(reported, defaultContentType) || strings.HasPrefix(reported, "binary/octet-stream") {
		return ContentTypeFor(p)
	}
	return reported
}
