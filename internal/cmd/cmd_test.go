package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanLisse/opencode-rs/internal/agent"
	"github.com/RyanLisse/opencode-rs/internal/checkpoint"
	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
	"github.com/RyanLisse/opencode-rs/internal/profile"
)

// stubRunner keeps agent tasks alive until they are cancelled, without
// touching any real sandbox tooling.
type stubRunner struct{}

func (stubRunner) Probe() error { return nil }

func (stubRunner) Run(ctx context.Context, branch, command string) error {
	<-ctx.Done()
	return ctx.Err()
}

// gitCall records one command handed to the fake git executor.
type gitCall struct {
	name string
	args []string
}

// fakeGit answers every git invocation successfully unless an error is
// queued, and records the calls it saw.
type fakeGit struct {
	calls []gitCall
	errs  []error
}

func (g *fakeGit) Run(dir string, name string, args ...string) ([]byte, error) {
	g.calls = append(g.calls, gitCall{name: name, args: args})
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return nil, err
	}
	return nil, nil
}

func (g *fakeGit) RunQuiet(dir string, name string, args ...string) error {
	_, err := g.Run(dir, name, args...)
	return err
}

// newTestApp builds an App with every collaborator already constructed, so
// Init has nothing left to do and no global state is touched.
func newTestApp(t *testing.T) (*App, *fakeGit) {
	t.Helper()

	cfg := config.Default()
	bus := event.NewBus()
	profiles := profile.NewTable(nil)
	registry := agent.New(stubRunner{}, profiles, cfg, nil, bus)
	t.Cleanup(registry.Shutdown)

	git := &fakeGit{}
	app := &App{
		Config:      cfg,
		Logger:      logging.NopLogger(),
		Bus:         bus,
		Profiles:    profiles,
		Runner:      stubRunner{},
		Registry:    registry,
		Checkpoints: checkpoint.NewManagerWithExecutor(t.TempDir(), cfg.Branch.Prefix, bus, nil, git),
	}
	return app, git
}

// executeCommand runs the command tree with args and returns cobra's
// captured output.
func executeCommand(app *App, args ...string) (string, error) {
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	app, _ := newTestApp(t)
	root := NewRootCmd(app)

	if root.Use != "opencode" {
		t.Errorf("root.Use = %q, want %q", root.Use, "opencode")
	}

	expected := []string{"agent", "checkpoint", "swarm", "ask", "repl", "config", "version"}
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range expected {
		if !names[want] {
			t.Errorf("expected subcommand %q not found", want)
		}
	}
}

func TestRootCommand_RejectsUnknownSubcommand(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "bogus"); err == nil {
		t.Error("expected an error for an unknown subcommand")
	}
}

func TestAgentSpawn(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "alice", "--profile", "rusty"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	record, ok := app.Registry.Get("alice")
	if !ok {
		t.Fatal("agent was not registered")
	}
	if record.Profile != "rusty" {
		t.Errorf("expected profile %q, got %q", "rusty", record.Profile)
	}
	if record.Branch != "agent/alice" {
		t.Errorf("expected branch %q, got %q", "agent/alice", record.Branch)
	}
	if record.Status != agent.StatusRunning {
		t.Errorf("expected status Running, got %s", record.Status)
	}
}

func TestAgentSpawn_DefaultProfile(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "bob"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	record, _ := app.Registry.Get("bob")
	if record.Profile != app.Config.Profile.Default {
		t.Errorf("expected default profile %q, got %q", app.Config.Profile.Default, record.Profile)
	}
}

func TestAgentSpawn_UnknownProfile(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "agent", "spawn", "alice", "--profile", "nope")
	if !errors.Is(err, errors.ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
	if _, ok := app.Registry.Get("alice"); ok {
		t.Error("no record should exist after a failed spawn")
	}
}

func TestAgentSpawn_Duplicate(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("first spawn failed: %v", err)
	}
	_, err := executeCommand(app, "agent", "spawn", "alice")
	if !errors.Is(err, errors.ErrAgentExists) {
		t.Fatalf("expected ErrAgentExists, got %v", err)
	}
}

func TestAgentStop(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if _, err := executeCommand(app, "agent", "stop", "alice"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	record, _ := app.Registry.Get("alice")
	if record.Status != agent.StatusStopped {
		t.Errorf("expected status Stopped, got %s", record.Status)
	}

	_, err := executeCommand(app, "agent", "stop", "alice")
	if !errors.Is(err, errors.ErrAgentNotRunning) {
		t.Errorf("expected ErrAgentNotRunning on second stop, got %v", err)
	}
}

func TestAgentStop_NotFound(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "agent", "stop", "ghost")
	if !errors.Is(err, errors.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestAgentStatus_NotFound(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "agent", "status", "ghost")
	if !errors.Is(err, errors.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestAgentStatus(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if _, err := executeCommand(app, "agent", "status", "alice"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
}

func TestAgentRm(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	// A running agent cannot be removed.
	_, err := executeCommand(app, "agent", "rm", "alice")
	if !errors.Is(err, errors.ErrAgentRunning) {
		t.Fatalf("expected ErrAgentRunning, got %v", err)
	}

	if _, err := executeCommand(app, "agent", "stop", "alice"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := executeCommand(app, "agent", "rm", "alice"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if _, ok := app.Registry.Get("alice"); ok {
		t.Error("record should be gone after rm")
	}
}

func TestAgentLs(t *testing.T) {
	app, _ := newTestApp(t)

	// Empty list is not an error.
	if _, err := executeCommand(app, "agent", "ls"); err != nil {
		t.Fatalf("ls with no agents failed: %v", err)
	}

	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if _, err := executeCommand(app, "agent", "ls"); err != nil {
		t.Fatalf("ls failed: %v", err)
	}
}

func TestCheckpointSave(t *testing.T) {
	app, git := newTestApp(t)

	if _, err := executeCommand(app, "checkpoint", "save", "alice", "-m", "before refactor"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// verify, checkout, add, commit, tag in that order.
	wantArgs := [][]string{
		{"rev-parse", "--verify", "refs/heads/agent/alice"},
		{"checkout", "agent/alice"},
		{"add", "-A"},
	}
	if len(git.calls) < 5 {
		t.Fatalf("expected 5 git calls, got %d", len(git.calls))
	}
	for i, want := range wantArgs {
		got := git.calls[i].args
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("call %d = git %v, want git %v", i, got, want)
		}
	}
	if git.calls[3].args[0] != "commit" {
		t.Errorf("expected commit as call 3, got %v", git.calls[3].args)
	}
	if git.calls[4].args[0] != "tag" {
		t.Errorf("expected tag as call 4, got %v", git.calls[4].args)
	}
}

func TestCheckpointSave_RequiresMessage(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "checkpoint", "save", "alice")
	if err == nil || !strings.Contains(err.Error(), "message") {
		t.Fatalf("expected a missing-message error, got %v", err)
	}
}

func TestCheckpointSave_UsesRegistryBranch(t *testing.T) {
	app, git := newTestApp(t)

	// A spawned agent's record carries the branch the checkpoint targets.
	if _, err := executeCommand(app, "agent", "spawn", "alice"); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	if _, err := executeCommand(app, "checkpoint", "save", "alice", "-m", "wip"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	verify := git.calls[0].args
	if verify[len(verify)-1] != "refs/heads/agent/alice" {
		t.Errorf("expected save against refs/heads/agent/alice, got %v", verify)
	}
}

func TestCheckpointList(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "checkpoint", "list", "alice"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
}

func TestCheckpointRestore(t *testing.T) {
	app, git := newTestApp(t)

	if _, err := executeCommand(app, "checkpoint", "restore", "cp/alice/abc", "alice-2"); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	last := git.calls[len(git.calls)-1]
	want := []string{"branch", "agent/alice-2", "cp/alice/abc"}
	if strings.Join(last.args, " ") != strings.Join(want, " ") {
		t.Errorf("expected git %v, got git %v", want, last.args)
	}
}

func TestCheckpointRestore_TagNotFound(t *testing.T) {
	app, git := newTestApp(t)
	git.errs = append(git.errs, fmt.Errorf("exit status 128"))

	_, err := executeCommand(app, "checkpoint", "restore", "cp/alice/missing", "alice-2")
	if !errors.Is(err, errors.ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}

func TestSwarmCommand(t *testing.T) {
	app, _ := newTestApp(t)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	content := "[workspace]\nmembers = [\"crates/auth\", \"crates/billing\"]\n"
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if _, err := executeCommand(app, "swarm", manifest); err != nil {
		t.Fatalf("swarm failed: %v", err)
	}

	for _, id := range []string{"builder-crates-auth", "builder-crates-billing"} {
		record, ok := app.Registry.Get(id)
		if !ok {
			t.Fatalf("expected agent %q to be spawned", id)
		}
		if record.Status != agent.StatusRunning {
			t.Errorf("agent %q status = %s, want Running", id, record.Status)
		}
	}
}

func TestSwarmCommand_PartialFailure(t *testing.T) {
	app, _ := newTestApp(t)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	content := "[workspace]\nmembers = [\"crates/auth\", \"crates/billing\"]\n"
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	// Occupy one of the builder ids so that spawn fails.
	if err := app.Registry.Spawn("builder-crates-auth", "rusty"); err != nil {
		t.Fatalf("pre-spawn failed: %v", err)
	}

	_, err := executeCommand(app, "swarm", manifest)
	if err == nil {
		t.Fatal("expected swarm to report the failed spawn")
	}
	if !errors.Is(err, errors.ErrAgentExists) {
		t.Errorf("expected ErrAgentExists in the joined error, got %v", err)
	}

	// The healthy sub-task still ran.
	if _, ok := app.Registry.Get("builder-crates-billing"); !ok {
		t.Error("expected the other builder to be spawned")
	}
}

func TestSwarmCommand_ManifestMissing(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "swarm", filepath.Join(t.TempDir(), "Cargo.toml"))
	if !errors.Is(err, errors.ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got %v", err)
	}
}

func TestAskCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	defer server.Close()

	app, _ := newTestApp(t)
	app.Config.Provider.APIBase = server.URL
	app.Config.Provider.APIKeyEnv = "OPENCODE_TEST_API_KEY"
	t.Setenv("OPENCODE_TEST_API_KEY", "test-key")

	if _, err := executeCommand(app, "ask", "What is Rust?"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if _, err := executeCommand(app, "ask", "What is Rust?", "--profile", "default"); err != nil {
		t.Fatalf("ask with profile failed: %v", err)
	}
}

func TestAskCommand_UnknownProfile(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := executeCommand(app, "ask", "hello", "--profile", "nope")
	if !errors.Is(err, errors.ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestAskCommand_MissingAPIKey(t *testing.T) {
	app, _ := newTestApp(t)
	app.Config.Provider.APIKeyEnv = "OPENCODE_TEST_UNSET_KEY"
	t.Setenv("OPENCODE_TEST_UNSET_KEY", "")

	_, err := executeCommand(app, "ask", "hello")
	if !errors.Is(err, errors.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := executeCommand(app, "config"); err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if _, err := executeCommand(app, "config", "show"); err != nil {
		t.Fatalf("config show failed: %v", err)
	}
}

func TestVersionCommand_SkipsInit(t *testing.T) {
	// A completely empty App proves version runs without initialization.
	if _, err := executeCommand(NewApp(), "version"); err != nil {
		t.Fatalf("version failed: %v", err)
	}
}

func TestAppInit_KeepsInjectedFields(t *testing.T) {
	app, _ := newTestApp(t)
	cfg, registry := app.Config, app.Registry

	if err := app.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if app.Config != cfg {
		t.Error("Init replaced the injected config")
	}
	if app.Registry != registry {
		t.Error("Init replaced the injected registry")
	}
}
