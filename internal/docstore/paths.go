// Maps (base directory, collection, session) tuples to on-disk paths.

package docstore

import (
	"path/filepath"
	"strings"
)

// researchDirName is the subdirectory under the base directory holding all collections.
const researchDirName = ".research"

// ResearchDir returns the root directory holding every collection.
func ResearchDir(baseDir string) string {
	return filepath.Join(baseDir, researchDirName)
}

// CollectionDir returns the directory holding one collection's partition files.
func CollectionDir(baseDir, collection string) string {
	return filepath.Join(baseDir, researchDirName, collection)
}

// IndexPath returns the path of one collection's on-disk secondary index.
func IndexPath(baseDir, collection string) string {
	return filepath.Join(baseDir, researchDirName, collection+"-index.json")
}

// SessionFilePath returns the partition file path for one session of a collection.
func SessionFilePath(baseDir, collection, sessionID string) string {
	return filepath.Join(CollectionDir(baseDir, collection), SanitizeSessionID(sessionID)+"-"+collection+".json")
}

// SanitizeSessionID replaces every character outside [A-Za-z0-9_.-] with '_'.
//
// Dots are preserved because session identifiers are hierarchical
// ("parent.child.grandchild"). The mapping is not injective: two ids that
// sanitize identically share a partition file. That is a documented
// limitation for hostile input, not something the store defends against.
func SanitizeSessionID(sessionID string) string {
	var b strings.Builder
	b.Grow(len(sessionID))
	for i := 0; i < len(sessionID); i++ {
		c := sessionID[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '_', c == '.', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
