package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/stevemurr/stub-server/record"
)

// extensions are tried in order; the first file that exists wins.
var extensions = []string{".json", ".yaml", ".yml"}

// DirSource reads each collection from a file in a directory.
//
// Layout:
//
//	data/
//	  widgets.json    # JSON array of objects
//	  people.yaml     # YAML sequence of mappings, used when people.json is absent
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Dir() string { return s.dir }

func (s *DirSource) collectionPath(collection, ext string) string {
	return filepath.Join(s.dir, collection+ext)
}

func (s *DirSource) Load(name string) ([]record.Record, error) {
	if !ValidName(name) {
		return nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	for _, ext := range extensions {
		path := s.collectionPath(name, ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "read %s", path)
		}
		var recs []record.Record
		if ext == ".json" {
			recs, err = record.DecodeArray(data)
		} else {
			recs, err = decodeYAML(data)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
		return recs, nil
	}
	return nil, nil
}

func (s *DirSource) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read dir %s", s.dir)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		for _, ext := range extensions {
			if !strings.HasSuffix(name, ext) {
				continue
			}
			base := strings.TrimSuffix(name, ext)
			if base != "" && !seen[base] {
				seen[base] = true
				names = append(names, base)
			}
			break
		}
	}
	sort.Strings(names)
	return names, nil
}
