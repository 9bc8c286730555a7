package assetcrawler

import (
	"path"
	"strings"
	"sync"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
)

// pathSet hands out archive paths that are unique within one extraction.
type pathSet struct {
	mu   sync.Mutex
	used map[string]bool
}

func newPathSet() *pathSet {
	return &pathSet{used: make(map[string]bool)}
}

// claim reserves f.Path, renaming f to name-<random8>.ext when another file
// of the extraction already holds it.
func (s *pathSet) claim(f *extractiondb.ExtractedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, name := path.Dir(f.Path), f.Name
	ext := path.Ext(name)
	for s.used[f.Path] {
		f.Name = strings.TrimSuffix(name, ext) + "-" + randomSuffix() + ext
		f.Path = path.Join(dir, f.Name)
	}
	s.used[f.Path] = true
}
