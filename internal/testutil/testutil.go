// Package testutil provides helpers for tests that exercise a real git
// repository, such as the checkpoint integration tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// SetupTestRepo creates a temporary git repository with one commit on a
// branch named main and returns its path. The repository is removed when
// the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	runGit(t, dir, "init")

	// Commits need an identity regardless of the host's git config.
	runGit(t, dir, "config", "user.email", "test@opencode.dev")
	runGit(t, dir, "config", "user.name", "OpenCode Test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0o644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "Initial commit")

	// Older git versions default to master.
	runGit(t, dir, "branch", "-M", "main")

	return dir
}

// CommitFile writes a file and commits it on the current branch.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	WriteFile(t, repoDir, path, content)
	runGit(t, repoDir, "add", path)
	runGit(t, repoDir, "commit", "-m", message)
}

// WriteFile writes a file into the repository without committing it.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// CreateBranch creates a branch without checking it out.
func CreateBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	runGit(t, repoDir, "branch", branch)
}

// CheckoutBranch switches the repository to a branch.
func CheckoutBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	runGit(t, repoDir, "checkout", branch)
}

// CurrentBranch returns the branch HEAD points at.
func CurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()

	return gitOutput(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch exists.
func BranchExists(t *testing.T, repoDir, branch string) bool {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = repoDir
	return cmd.Run() == nil
}

// RevParse resolves a revision to a commit hash. Annotated tags are peeled
// to the commit they point at.
func RevParse(t *testing.T, repoDir, rev string) string {
	t.Helper()

	return gitOutput(t, repoDir, "rev-parse", rev+"^{commit}")
}

// CommitCount returns the number of commits reachable from a revision.
func CommitCount(t *testing.T, repoDir, rev string) int {
	t.Helper()

	out := gitOutput(t, repoDir, "rev-list", "--count", rev)
	count, err := strconv.Atoi(out)
	if err != nil {
		t.Fatalf("failed to parse commit count %q: %v", out, err)
	}
	return count
}

// HasUncommittedChanges reports whether the working tree or index differ
// from HEAD, untracked files included.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()

	return gitOutput(t, repoDir, "status", "--porcelain") != ""
}

// FileContent reads a file from the working tree.
func FileContent(t *testing.T, repoDir, path string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(repoDir, path))
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %s failed: %v", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out))
}
