package repolife

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// execCommand is the exec entry point runGit builds every git subprocess with.
var execCommand = exec.CommandContext

// runGit runs one git subcommand in dir and returns its trimmed stdout.
// Every git invocation in this package goes through here so error
// classification and argument construction stay in one place.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := execCommand(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", ierrors.Wrap(ierrors.PipelineErr,
			fmt.Sprintf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String())), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func clone(ctx context.Context, originURL, localPath string) error {
	_, err := runGit(ctx, "", "clone", originURL, localPath)
	return err
}

func headSHA(ctx context.Context, localPath string) (string, error) {
	return runGit(ctx, localPath, "rev-parse", "HEAD")
}

func fetchOrigin(ctx context.Context, localPath string) error {
	_, err := runGit(ctx, localPath, "fetch", "origin")
	return err
}

func remoteHeadSHA(ctx context.Context, localPath string) (string, error) {
	out, err := runGit(ctx, localPath, "rev-parse", "origin/HEAD")
	if err == nil {
		return out, nil
	}
	// Some remotes never set a symbolic origin/HEAD; fall back to the
	// current branch's upstream.
	return runGit(ctx, localPath, "rev-parse", "@{u}")
}

func pullOrigin(ctx context.Context, localPath string) error {
	_, err := runGit(ctx, localPath, "pull", "origin")
	return err
}

// commitsBetween returns the count of commits reachable from toSHA but not
// fromSHA ("git rev-list --count from..to").
func commitsBetween(ctx context.Context, localPath, fromSHA, toSHA string) (int, error) {
	out, err := runGit(ctx, localPath, "rev-list", "--count", fromSHA+".."+toSHA)
	if err != nil {
		return 0, err
	}
	var n int
	if _, scanErr := fmt.Sscanf(out, "%d", &n); scanErr != nil {
		return 0, ierrors.Wrap(ierrors.PipelineErr, "git rev-list: parse count", scanErr)
	}
	return n, nil
}

// changedFiles returns the files that differ between fromSHA and toSHA
// ("git diff --name-only from..to"), one path per line.
func changedFiles(ctx context.Context, localPath, fromSHA, toSHA string) ([]string, error) {
	out, err := runGit(ctx, localPath, "diff", "--name-only", fromSHA+".."+toSHA)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// changedAndDeletedFiles splits a diff into files that still exist at
// toSHA (changed/added) and files that no longer do (deleted).
func changedAndDeletedFiles(ctx context.Context, localPath, fromSHA, toSHA string) (changed, deleted []string, err error) {
	out, err := runGit(ctx, localPath, "diff", "--name-status", fromSHA+".."+toSHA)
	if err != nil {
		return nil, nil, err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		status, path := fields[0], fields[1]
		if strings.HasPrefix(status, "D") {
			deleted = append(deleted, path)
		} else {
			changed = append(changed, path)
		}
	}
	return changed, deleted, nil
}
