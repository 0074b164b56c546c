package policy

import (
	"fmt"

	"github.com/gatelet-dev/gatelet/internal/pathutil"
	"github.com/gatelet-dev/gatelet/internal/permission"
)

// pathKinds are the kinds whose allow entries name filesystem paths
// and may therefore be written as file: URLs.
var pathKinds = map[string]bool{
	string(permission.NameRead):  true,
	string(permission.NameWrite): true,
	string(permission.NameFfi):   true,
	string(permission.NameRun):   true,
}

// Normalize rewrites file: URLs in the allow lists of path-bearing
// kinds into plain paths, in place. List entries of other kinds and
// blanket boolean values pass through untouched, as do deny lists and
// rule patterns, which are already written as paths. Calling Normalize
// on a nil document is a no-op.
func (d *Document) Normalize() error {
	if d == nil {
		return nil
	}

	for kind, section := range d.Capabilities {
		if !pathKinds[kind] {
			continue
		}
		list := section.Allow.List()
		if list == nil {
			continue
		}
		for i, entry := range list {
			if !pathutil.IsFileURL(entry) {
				continue
			}
			path, err := pathutil.FromURL(entry)
			if err != nil {
				return fmt.Errorf("failed to normalize %s allow entry %q: %w", kind, entry, err)
			}
			list[i] = path
		}
	}

	return nil
}
