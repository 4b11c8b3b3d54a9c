// Package layouts reads board layouts from disk and fetches new ones from
// HTML index pages that link to .lay files.
package layouts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brensch/pursuit/game"
)

// Ext is the layout file extension.
const Ext = ".lay"

// Entry is a parsed layout and the name it was stored under.
type Entry struct {
	Name  string
	State *game.GameState
}

// Name strips the directory and extension from a layout path or URL path.
func Name(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

func Load(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()

	state, err := game.ParseLayout(f)
	if err != nil {
		return Entry{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return Entry{Name: Name(path), State: state}, nil
}

// LoadDir parses every .lay file in dir, sorted by name. One bad file fails
// the whole load.
func LoadDir(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("glob layouts: %w", err)
	}
	sort.Strings(paths)

	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		e, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
