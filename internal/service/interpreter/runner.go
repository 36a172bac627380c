package interpreter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

const maxOutputBytes = 8 << 10

// ConfirmFunc asks the user whether a block may run.
type ConfirmFunc func(ctx context.Context, block CodeBlock) bool

// Runner executes code blocks in subprocesses.
type Runner struct {
	Workdir string
	Timeout time.Duration
	Confirm ConfirmFunc
}

// NewRunner returns a Runner with the given per-block timeout.
func NewRunner(workdir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{Workdir: workdir, Timeout: timeout}
}

type launcher struct {
	name string
	flag string
}

// launchers maps a fence language to the executable that runs it.
var launchers = map[string]launcher{
	"bash":       {"bash", "-c"},
	"shell":      {"bash", "-c"},
	"console":    {"bash", "-c"},
	"sh":         {"sh", "-c"},
	"zsh":        {"zsh", "-c"},
	"python":     {"python3", "-c"},
	"python3":    {"python3", "-c"},
	"py":         {"python3", "-c"},
	"javascript": {"node", "-e"},
	"js":         {"node", "-e"},
	"node":       {"node", "-e"},
}

// Supported reports whether lang has a launcher.
func Supported(lang string) bool {
	_, ok := launchers[lang]
	return ok
}

// Run executes block and returns its combined output. Failures of the code
// itself (non-zero exit, timeout, unknown language) are reported in the
// output so the model can react to them, as is a missing interpreter
// binary. The error is reserved for cancellation and failures to start.
func (r *Runner) Run(ctx context.Context, block CodeBlock) (string, error) {
	l, ok := launchers[block.Language]
	if !ok {
		return fmt.Sprintf("unsupported language: %s", displayLang(block.Language)), nil
	}

	if r.Confirm != nil && !r.Confirm(ctx, block) {
		return "user declined to run this code", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, l.name, l.flag, block.Code)
	cmd.Dir = r.Workdir
	// avoid pagers and colour codes in captured output
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "PAGER=cat")
	// children that inherit the pipes must not outlive the timeout
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	output := truncate(strings.TrimRight(string(out), "\n"))
	if runCtx.Err() == context.DeadlineExceeded {
		return appendLine(output, "command timed out"), nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return output, nil
	case errors.As(err, &exitErr):
		return appendLine(output, fmt.Sprintf("exit status %d", exitErr.ExitCode())), nil
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Sprintf("%s not found", l.name), nil
	default:
		return "", fmt.Errorf("run %s: %w", l.name, err)
	}
}

func displayLang(lang string) string {
	if lang == "" {
		return "(none)"
	}
	return lang
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	cut := maxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (output truncated)"
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
