// Package sandbox runs an LLM-generated evaluation script in a subprocess
// with a wall-clock timeout (the whole process group is killed when it
// expires) and shell ulimit bounds on CPU time and address space. The
// subprocess is not network-isolated: NetworkDisabled only clears proxy
// variables from its environment. ReadOnlyRoot is not applied, and the
// work directory is an ordinary directory (default /tmp/sandbox). A Runner
// implementation backed by goja provides an in-process fallback for
// environments without the configured interpreter installed.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sys/unix"

	"github.com/scigraph/engine/internal/apperrors"
)

// outputCap truncates stdout/stderr to this many bytes, per spec.
const outputCap = 50 * 1024

const truncatedMarker = "\n...[truncated]"

// Config controls one execution's isolation parameters.
type Config struct {
	Interpreter     string
	Timeout         time.Duration
	MemoryBytes     int64
	CPUCores        float64
	NetworkDisabled bool
	ReadOnlyRoot    bool
	WorkDir         string
}

func (c Config) withDefaults() Config {
	if c.Interpreter == "" {
		c.Interpreter = "python3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.MemoryBytes <= 0 {
		c.MemoryBytes = 2 << 30
	}
	if c.CPUCores <= 0 {
		c.CPUCores = 1
	}
	if c.WorkDir == "" {
		c.WorkDir = "/tmp/sandbox"
	}
	return c
}

// Result is the outcome of one script execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// ParseMetrics scans stdout for a trailing JSON object: the last line
// that starts with '{' and decodes successfully. Absent returns an empty
// map, never an error, per the sandbox protocol.
func (r Result) ParseMetrics() map[string]interface{} {
	lines := strings.Split(r.Stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if !gjson.Valid(line) {
			continue
		}
		parsed := gjson.Parse(line)
		out := make(map[string]interface{})
		parsed.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = value.Value()
			return true
		})
		return out
	}
	return map[string]interface{}{}
}

// Runner executes a script and returns its Result.
type Runner interface {
	Run(ctx context.Context, script string) (Result, error)
}

// ProcessRunner isolates each execution in its own OS process group,
// writing the script to a file under a tmpfs-backed work directory.
type ProcessRunner struct {
	cfg Config
}

// NewProcessRunner builds a ProcessRunner from cfg.
func NewProcessRunner(cfg Config) *ProcessRunner {
	return &ProcessRunner{cfg: cfg.withDefaults()}
}

// Run executes script with the configured interpreter, killing the whole
// process group on timeout.
func (p *ProcessRunner) Run(ctx context.Context, script string) (Result, error) {
	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return Result{}, apperrors.Wrap(apperrors.SandboxFailure, "create work dir", err)
	}
	scriptPath := filepath.Join(p.cfg.WorkDir, "script.py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return Result{}, apperrors.Wrap(apperrors.SandboxFailure, "write script", err)
	}
	defer os.Remove(scriptPath)

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", rlimitedCommand(p.cfg, scriptPath))
	cmd.Dir = p.cfg.WorkDir
	cmd.Env = sandboxEnv(p.cfg)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: capOutput(stdout.String()),
		Stderr: capOutput(stderr.String()),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		result.TimedOut = true
		return result, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, apperrors.Wrap(apperrors.SandboxFailure, "run script", err)
	}
	return result, nil
}

// rlimitedCommand wraps the interpreter invocation in ulimit directives so
// the child's own shell applies CPU-time and address-space caps to itself
// before exec, rather than the engine process limiting itself.
func rlimitedCommand(cfg Config, scriptPath string) string {
	cpuSeconds := int64(cfg.Timeout.Seconds()) + 1
	memoryKB := cfg.MemoryBytes / 1024
	return fmt.Sprintf("ulimit -t %d; ulimit -v %d; exec %s %s", cpuSeconds, memoryKB, cfg.Interpreter, scriptPath)
}

func sandboxEnv(cfg Config) []string {
	env := []string{"PATH=/usr/bin:/bin", "HOME=" + cfg.WorkDir}
	if cfg.NetworkDisabled {
		env = append(env, "NO_PROXY=*", "http_proxy=", "https_proxy=")
	}
	return env
}

func capOutput(s string) string {
	if len(s) <= outputCap {
		return s
	}
	return s[:outputCap] + truncatedMarker
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
}
