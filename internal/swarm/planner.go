// Package swarm turns a workspace manifest into a build plan and executes
// it by spawning one sandboxed agent per sub-task. Planning is pure
// manifest parsing; execution fans out through the agent registry with
// bounded parallelism and reports progress over the event bus.
package swarm

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/util"
)

// agentIDPrefix prefixes the agent id derived for every sub-task.
const agentIDPrefix = "builder-"

// globChars are the metacharacters that mark a workspace member as a
// pattern rather than a literal path.
const globChars = "*?[{"

// SubTask is one unit of work in a plan: a workspace member to build and
// the agent that builds it.
type SubTask struct {
	// Name is the member path relative to the manifest directory, or the
	// package name for single-package manifests.
	Name string

	// AgentID identifies the agent spawned for this sub-task.
	AgentID string
}

// Plan is an ordered set of sub-tasks derived from one manifest.
type Plan struct {
	// ManifestPath is the manifest the plan was derived from.
	ManifestPath string

	// Tasks holds the sub-tasks in workspace declaration order, glob
	// members expanded in place.
	Tasks []SubTask
}

// Total returns the number of sub-tasks in the plan.
func (p *Plan) Total() int { return len(p.Tasks) }

// manifest mirrors the subset of the workspace manifest the planner reads.
type manifest struct {
	Workspace *workspaceTable `toml:"workspace"`
	Package   *packageTable   `toml:"package"`
}

type workspaceTable struct {
	Members []string `toml:"members"`
}

type packageTable struct {
	Name string `toml:"name"`
}

// PlanBuild parses the TOML manifest at manifestPath and derives one
// sub-task per workspace member. Literal members pass through as declared;
// members containing glob metacharacters expand against the manifest
// directory and match directories only. A manifest without workspace
// members yields a single sub-task covering the whole project, named from
// the package name or, failing that, the manifest directory. The plan for
// an existing, parseable manifest is never empty.
func PlanBuild(manifestPath string) (*Plan, error) {
	if manifestPath == "" {
		return nil, errors.NewPlanError("manifest path must not be empty", errors.ErrInvalidInput)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPlanError("manifest not found", errors.ErrManifestNotFound).
				WithManifest(manifestPath)
		}
		return nil, errors.NewPlanError("failed to read manifest", err).
			WithManifest(manifestPath)
	}

	var m manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.NewPlanError("failed to parse manifest: "+err.Error(), errors.ErrManifestInvalid).
			WithManifest(manifestPath)
	}

	dir := filepath.Dir(manifestPath)

	var tasks []SubTask
	if m.Workspace != nil {
		for _, member := range m.Workspace.Members {
			if !strings.ContainsAny(member, globChars) {
				tasks = append(tasks, newSubTask(member))
				continue
			}
			expanded, err := expandMember(dir, member)
			if err != nil {
				return nil, errors.NewPlanError(fmt.Sprintf("invalid members pattern %q", member), errors.ErrManifestInvalid).
					WithManifest(manifestPath)
			}
			tasks = append(tasks, expanded...)
		}
	}

	// A manifest with no members, or whose patterns matched nothing,
	// still builds: the whole project becomes the single sub-task.
	if len(tasks) == 0 {
		tasks = append(tasks, newSubTask(projectName(m, dir)))
	}

	return &Plan{ManifestPath: manifestPath, Tasks: tasks}, nil
}

// expandMember matches a glob member against the manifest directory and
// returns one sub-task per matched directory, in lexical order.
func expandMember(dir, member string) ([]SubTask, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, filepath.ToSlash(member))
	if err != nil {
		return nil, err
	}

	var tasks []SubTask
	for _, match := range matches {
		info, err := fs.Stat(fsys, match)
		if err != nil || !info.IsDir() {
			continue
		}
		tasks = append(tasks, newSubTask(match))
	}
	return tasks, nil
}

// projectName names the whole-project sub-task for manifests without
// workspace members.
func projectName(m manifest, dir string) string {
	if m.Package != nil && m.Package.Name != "" {
		return m.Package.Name
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(dir)
}

// newSubTask derives the agent id for a member: the builder prefix plus
// the slugged name, so "crates/core" becomes "builder-crates-core".
func newSubTask(name string) SubTask {
	return SubTask{
		Name:    name,
		AgentID: agentIDPrefix + util.Slugify(name),
	}
}
