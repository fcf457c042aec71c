// Package assets embeds the default bundled keyboard resources shipped with
// kbres: one Italian layout, its symbol page, accent variations, an emoji
// category and a small Italian dictionary.
package assets

import (
	"embed"
	"io/fs"

	"kbres/internal/storage"
)

//go:embed layouts symbols variations emoji dictionaries
var content embed.FS

// FS returns the embedded resource tree, laid out by class directory.
func FS() fs.FS { return content }

// Store returns a read-only bundled store over the embedded resources.
func Store() *storage.Bundled {
	return storage.NewBundled(content)
}
