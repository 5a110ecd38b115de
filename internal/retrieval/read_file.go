package retrieval

import (
	"fmt"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// minRangeLines is the smallest window read_file expands a short request
// to, centered on the requested midpoint — avoids wasteful micro-reads.
const minRangeLines = 150
const expandBelowLines = 100
const maxReturnedLines = 500

// ReadFile fetches the indexed content of path, slices it to [start, end]
// (1-indexed, inclusive), and returns it with line numbers prefixed. A
// zero start/end means "the whole file, up to the line cap". Fails with
// NotFound if the file was never indexed — there is no disk fallback.
func (t *Tools) ReadFile(repoID int64, filePath string, start, end int) (string, error) {
	fc, err := t.DB.GetFileContent(repoID, filePath)
	if err != nil {
		return "", err
	}
	lines := strings.Split(fc.Content, "\n")
	total := len(lines)

	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if end < start {
		return "", ierrors.BadRequestf("read_file: end line %d precedes start line %d", end, start)
	}

	if end-start+1 < expandBelowLines {
		mid := (start + end) / 2
		start = mid - minRangeLines/2
		end = mid + minRangeLines/2
		if start < 1 {
			start = 1
		}
		if end > total {
			end = total
		}
	}
	if end-start+1 > maxReturnedLines {
		end = start + maxReturnedLines - 1
	}

	var b strings.Builder
	for i := start; i <= end && i <= total; i++ {
		fmt.Fprintf(&b, "%6d  %s\n", i, lines[i-1])
	}
	return b.String(), nil
}
