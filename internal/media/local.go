package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalResolver serves files below a root directory.
type LocalResolver struct {
	root string
}

// NewLocalResolver resolves root to an absolute directory.
func NewLocalResolver(root string) (*LocalResolver, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("media/local: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media/local: resolve root: %w", err)
	}
	return &LocalResolver{root: abs}, nil
}

func (r *LocalResolver) Name() string { return "local" }

func (r *LocalResolver) Resolve(_ context.Context, p string) (Object, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return Object{}, err
	}
	full := filepath.Join(r.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(r.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Object{}, ErrInvalidPath
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("media/local: stat %s: %w", cleaned, err)
	}
	if info.IsDir() {
		return Object{}, ErrNotFound
	}
	if info.Size() > maxObjectSize {
		return Object{}, fmt.Errorf("media/local: %s exceeds size limit", cleaned)
	}
	body, err := os.ReadFile(full)
	if err != nil {
		return Object{}, fmt.Errorf("media/local: read %s: %w", cleaned, err)
	}
	return Object{Body: body, ContentType: ContentTypeFor(cleaned), Source: r.Name()}, nil
}
