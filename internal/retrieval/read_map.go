package retrieval

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// ReadMap renders a directory tree rooted at scopePath (empty means the
// whole repo), annotated with each entry's stored summary, as a plain-text
// outline — the agent's "table of contents" before it drills into
// search_code or read_file.
func (t *Tools) ReadMap(repoID int64, scopePath string) (string, error) {
	var b strings.Builder
	if err := t.writeMapLevel(&b, repoID, scopePath, 0); err != nil {
		return "", err
	}
	if b.Len() == 0 {
		return "(empty)", nil
	}
	return b.String(), nil
}

func (t *Tools) writeMapLevel(b *strings.Builder, repoID int64, dirPath string, depth int) error {
	files, err := t.DB.FileSummariesInDir(repoID, dirPath)
	if err != nil {
		return err
	}
	dirs, err := t.DB.DirectorySummariesInDir(repoID, dirPath)
	if err != nil {
		return err
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].DirPath < dirs[j].DirPath })
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	indent := strings.Repeat("  ", depth)
	for _, d := range dirs {
		name := path.Base(d.DirPath)
		if d.Summary != "" {
			fmt.Fprintf(b, "%s%s/ — %s\n", indent, name, d.Summary)
		} else {
			fmt.Fprintf(b, "%s%s/\n", indent, name)
		}
		if err := t.writeMapLevel(b, repoID, d.DirPath, depth+1); err != nil {
			return err
		}
	}
	for _, f := range files {
		name := path.Base(f.FilePath)
		if f.Summary != "" {
			fmt.Fprintf(b, "%s%s — %s\n", indent, name, f.Summary)
		} else {
			fmt.Fprintf(b, "%s%s\n", indent, name)
		}
	}
	return nil
}
