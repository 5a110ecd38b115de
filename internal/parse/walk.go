package parse

import (
	"io/fs"
	"path/filepath"
)

// skipDirs names directories never descended into regardless of language
// allow-list — version control metadata and dependency trees that would
// otherwise dwarf the indexable source.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// WalkSourceFiles returns every file under root whose extension is in the
// language registry's allow-list, as paths relative to root using forward
// slashes. pathFilter, if non-empty, restricts the walk to that subtree.
func WalkSourceFiles(root string, pathFilter string) ([]string, error) {
	var out []string
	startDir := root
	if pathFilter != "" {
		startDir = filepath.Join(root, pathFilter)
	}

	err := filepath.WalkDir(startDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if _, ok := DefaultRegistry().GetByExtension(ext); !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsSourceFile reports whether path's extension is in the allow-list.
func IsSourceFile(path string) bool {
	_, ok := DefaultRegistry().GetByExtension(filepath.Ext(path))
	return ok
}
