package codex

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Sandbox modes understood by codex.
const (
	SandboxReadOnly         = "read-only"
	SandboxWorkspaceWrite   = "workspace-write"
	SandboxDangerFullAccess = "danger-full-access"
)

// ReasoningEfforts lists the effort levels codex accepts.
var ReasoningEfforts = []string{"minimal", "low", "medium", "high", "xhigh"}

// IsReasoningEffort reports whether effort is an accepted level.
func IsReasoningEffort(effort string) bool {
	for _, e := range ReasoningEfforts {
		if e == effort {
			return true
		}
	}
	return false
}

// Config holds the static part of every codex invocation.
type Config struct {
	Path                   string
	Workdir                string
	Home                   string
	SandboxMode            string
	ReasoningEffort        string
	HideReasoning          bool
	WorkspaceNetworkAccess bool
	JSONOutput             bool
}

// Compile-time check to ensure CommandBuilder implements ToolAdapter interface
var _ output.ToolAdapter = (*CommandBuilder)(nil)

// CommandBuilder struct - Output adapter turning requests into `codex exec`
// invocations. The executable, working directory and codex home are
// resolved once, on first use.
type CommandBuilder struct {
	cfg Config

	once         sync.Once
	prepareErr   error
	exe          string
	workdir      string
	home         string
	skipGitCheck bool
}

// NewCommandBuilder creates a CommandBuilder.
func NewCommandBuilder(cfg Config) *CommandBuilder {
	if cfg.Path == "" {
		cfg.Path = "codex"
	}
	if cfg.SandboxMode == "" {
		cfg.SandboxMode = SandboxReadOnly
	}
	cfg.ReasoningEffort = strings.ToLower(strings.TrimSpace(cfg.ReasoningEffort))
	return &CommandBuilder{cfg: cfg}
}

// Prepare resolves the executable, working directory and codex home.
// It is called by Invocation and may be called at startup to fail fast.
func (b *CommandBuilder) Prepare() error {
	b.once.Do(func() {
		exe, err := resolveExecutable(b.cfg.Path)
		if err != nil {
			b.prepareErr = err
			return
		}
		workdir, err := prepareDir("work", workdirCandidates(b.cfg.Workdir))
		if err != nil {
			b.prepareErr = err
			return
		}
		home, err := prepareDir("home", homeCandidates(b.cfg.Home, workdir))
		if err != nil {
			b.prepareErr = err
			return
		}
		b.exe = exe
		b.workdir = workdir
		b.home = home
		b.skipGitCheck = !insideGitRepository(workdir)

		logrus.WithFields(logrus.Fields{
			"executable":     exe,
			"workdir":        workdir,
			"codex_home":     home,
			"skip_git_check": b.skipGitCheck,
		}).Info("Codex command prepared")
	})
	return b.prepareErr
}

// Workdir returns the resolved working directory, or "" before Prepare.
func (b *CommandBuilder) Workdir() string {
	return b.workdir
}

// Invocation builds the codex command line for req.
func (b *CommandBuilder) Invocation(req domain.ExecutionRequest) (domain.Invocation, error) {
	if err := b.Prepare(); err != nil {
		return domain.Invocation{}, domain.NewExecutionError(domain.KindProcessLaunch, err.Error(), err)
	}
	return domain.Invocation{
		Path:     b.exe,
		Args:     b.Args(req.Prompt, req.Options),
		Dir:      b.workdir,
		Env:      b.environ(),
		Deadline: req.Deadline,
	}, nil
}

// Args returns the arguments following the executable.
func (b *CommandBuilder) Args(prompt string, opts domain.ExecutionOptions) []string {
	args := []string{"exec", prompt, "--color", "never"}
	if b.skipGitCheck {
		args = append(args, "--skip-git-repo-check")
	}
	if b.cfg.JSONOutput {
		args = append(args, "--json")
	}

	sandbox := b.cfg.SandboxMode
	if opts.Sandbox != "" {
		sandbox = opts.Sandbox
	}
	hide := b.cfg.HideReasoning
	if opts.HideReasoning != nil {
		hide = *opts.HideReasoning
	}

	args = append(args,
		"--config", tomlString("sandbox_mode", sandbox),
		"--config", tomlBool("hide_agent_reasoning", hide),
	)

	effort := ""
	switch {
	case opts.ReasoningEffort != "":
		effort = opts.ReasoningEffort
	case IsReasoningEffort(b.cfg.ReasoningEffort) && !strings.HasPrefix(opts.Model, "gpt-5"):
		// gpt-5 models use the CLI default unless an effort alias was requested
		effort = b.cfg.ReasoningEffort
	}
	if effort != "" {
		args = append(args, "--config", tomlString("model_reasoning_effort", effort))
	}

	if opts.Model != "" {
		args = append(args, "--config", tomlString("model", opts.Model))
	}

	if sandbox == SandboxWorkspaceWrite && (opts.NetworkAccess != nil || b.cfg.WorkspaceNetworkAccess) {
		allow := b.cfg.WorkspaceNetworkAccess
		if opts.NetworkAccess != nil {
			allow = *opts.NetworkAccess
		}
		args = append(args, "--config", fmt.Sprintf("sandbox_workspace_write={ network_access = %t }", allow))
	}
	return args
}

func (b *CommandBuilder) environ() []string {
	env := os.Environ()
	if b.home == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, "CODEX_HOME=") {
			out = append(out, kv)
		}
	}
	return append(out, "CODEX_HOME="+b.home)
}

func tomlString(key, value string) string {
	return fmt.Sprintf("%s=%q", key, value)
}

func tomlBool(key string, value bool) string {
	return fmt.Sprintf("%s=%t", key, value)
}

func resolveExecutable(path string) (string, error) {
	if filepath.IsAbs(path) {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return "", fmt.Errorf("codex path %q is not executable or not found", path)
		}
		return path, nil
	}
	exe, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("codex binary not found in PATH (codex.path=%q): %w", path, err)
	}
	return exe, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func workdirCandidates(configured string) []string {
	candidates := []string{}
	if configured != "" {
		candidates = append(candidates, expandHome(configured))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), "codex-workdir"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cache", "codex-gateway"))
	}
	return candidates
}

func homeCandidates(configured, workdir string) []string {
	candidates := []string{}
	if configured != "" {
		candidates = append(candidates, expandHome(configured))
	}
	if env := os.Getenv("CODEX_HOME"); env != "" {
		candidates = append(candidates, expandHome(env))
	}
	candidates = append(candidates,
		filepath.Join(workdir, ".codex"),
		filepath.Join(os.TempDir(), "codex"),
	)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".codex"))
	}
	return candidates
}

// prepareDir returns the first candidate that can be created and written to.
func prepareDir(kind string, candidates []string) (string, error) {
	var errs []error
	for i, dir := range candidates {
		if err := ensureWritable(dir); err != nil {
			logrus.WithField("dir", dir).WithError(err).Warnf("Unable to prepare codex %s directory", kind)
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		if i > 0 {
			logrus.WithField("dir", dir).Warnf("Using fallback codex %s directory", kind)
		}
		return dir, nil
	}
	return "", fmt.Errorf("failed to prepare codex %s directory: %w", kind, errors.Join(errs...))
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "codex-perm-")
	if err != nil {
		return fmt.Errorf("write test failed: %w", err)
	}
	name := f.Name()
	_, werr := f.WriteString("codex")
	f.Close()
	os.Remove(name)
	if werr != nil {
		return fmt.Errorf("write test failed: %w", werr)
	}
	return nil
}

func insideGitRepository(dir string) bool {
	current, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(current); err == nil {
		current = resolved
	}
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return false
		}
		current = parent
	}
}
