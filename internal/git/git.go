// Package git reads metadata and diffs from a local checkout.
package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
	Deleted      bool
}

// Paths returns the paths of changes in order.
func Paths(changes []ChangedFile) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// GetChangedFiles runs git diff against baseRef inside dir and returns the
// changed files with their new-side line numbers.
func GetChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	output, err := run(ctx, dir, "diff", "-U0", baseRef)
	if err != nil {
		return nil, err
	}
	return parseDiff(output)
}

// OriginURL returns the URL of the origin remote.
func OriginURL(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the checked out branch name, or "HEAD" when detached.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Head returns the full commit hash of HEAD.
func Head(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// chunk header: @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				// b/ is the new-side path.
				currentFile = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil {
			continue
		}

		if line == "+++ /dev/null" {
			currentFile.Deleted = true
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := chunkHeader.FindStringSubmatch(line)
			if len(matches) > 1 {
				startLine, _ := strconv.Atoi(matches[1])
				count := 1
				if len(matches) > 2 && matches[2] != "" {
					count, _ = strconv.Atoi(matches[2])
				}
				// A zero count is a pure deletion: no new-side lines.
				for i := 0; i < count; i++ {
					currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}

	return changes, nil
}

// Clone makes a shallow clone of url at branch into dest. An empty branch
// clones the remote default.
func Clone(ctx context.Context, url, branch, dest string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	_, err := run(ctx, "", args...)
	return err
}
