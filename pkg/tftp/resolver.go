package tftp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

// Resolver maps client supplied filenames to absolute paths under a
// fixed root directory. The root is normalized once at construction
// and never changes.
type Resolver struct {
	root string
}

func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("error while resolving root dir %s: %w", root, err)
	}

	return &Resolver{root: filepath.Clean(abs)}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the absolute path for name or ErrAccessViolation when
// the cleaned path escapes the root. Containment is checked on path
// components, not string prefixes, so a sibling directory whose name
// merely extends the root's name is rejected.
func (r *Resolver) Resolve(name string) (string, error) {
	name = strings.TrimLeft(name, "/")

	p := filepath.Clean(filepath.Join(r.root, filepath.FromSlash(name)))

	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return "", utils.ErrAccessViolation
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", utils.ErrAccessViolation
	}

	return p, nil
}
