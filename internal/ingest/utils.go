package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/order-transformer/constants"
)

// AllowedExt checks if a file extension is one the readers accept.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// SourceFromPath names the partner from the first directory below root,
// so inbox/kehe/po.csv belongs to kehe. Files directly under root fall back
// to their parent directory name.
func SourceFromPath(root, path string) (constants.Source, bool) {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if len(parts) > 1 {
				return constants.CanonicalSource(parts[0])
			}
		}
	}
	return constants.CanonicalSource(filepath.Base(filepath.Dir(path)))
}
