// Package git reads the current branch so a timer can be started for the
// issue the branch was created from.
package git

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// Linear branch names look like "ada/eng-123-fix-login" or "ENG-123".
var issueRef = regexp.MustCompile(`(?i)(?:^|[/_-])([a-z][a-z0-9]{0,9})[-_](\d+)(?:$|[/_-])`)

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	_, err := run(ctx, dir, "rev-parse", "--git-dir")
	return err == nil
}

// CurrentBranch returns the checked out branch, or "HEAD" when detached.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// IssueIdentifier extracts a Linear identifier such as "ENG-123" from a
// branch name.
func IssueIdentifier(branch string) (string, bool) {
	m := issueRef.FindStringSubmatch(branch)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + "-" + m[2], true
}

// BranchIssue combines CurrentBranch and IssueIdentifier.
func BranchIssue(ctx context.Context, dir string) (string, bool, error) {
	branch, err := CurrentBranch(ctx, dir)
	if err != nil {
		return "", false, err
	}
	id, ok := IssueIdentifier(branch)
	return id, ok, nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
