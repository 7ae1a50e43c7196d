package pathvalidate

import (
	"path/filepath"
	"strings"
)

// ResolveWithinRoot validates p and, if it's relative, joins it against
// root to produce an absolute path. It returns an error if the resolved
// path would fall outside root — this is the guard stack frame
// classification (internal/stackframe) relies on before reporting
// inProject.
func ResolveWithinRoot(root, p string, windows bool) (string, error) {
	if err := Validate(p, windows); err != nil {
		return "", err
	}

	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(root, p)
	}
	abs = filepath.Clean(abs)

	cleanRoot := filepath.Clean(root)
	rel, err := filepath.Rel(cleanRoot, abs)
	if err != nil {
		return "", reject(p, "path cannot be related to the project root")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", reject(p, "path resolves outside the project root")
	}

	return abs, nil
}
