package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/purelind/pycompat-check/pkg/logger"
)

// PipCheckResult is what one probe run observed.
type PipCheckResult struct {
	Packages []string
	Status   Status
	Details  string
	// Requirements is the freeze listing after a successful install.
	Requirements string
}

// Pip runs install-and-check cycles with one pip command, e.g.
// ["python3", "-m", "pip"]. It changes the environment the command
// belongs to, so two Check calls must never share an environment
// concurrently.
type Pip struct {
	Command []string
	TmpDir  string
	// Clean uninstalls everything before installing.
	Clean   bool
	Timeout time.Duration
}

// Check installs the packages and runs "pip check". Install failures and
// check warnings are results; a *PipError means the probe is broken.
func (p *Pip) Check(ctx context.Context, packages []string) (*PipCheckResult, error) {
	if n := len(packages); n < 1 || n > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPackageCount, n)
	}
	if len(p.Command) == 0 {
		return nil, errors.New("pip command is empty")
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(p.TmpDir, "pip-check-")
	if err != nil {
		return nil, &PipError{Command: p.Command, Err: err}
	}
	defer os.RemoveAll(dir)

	start := time.Now()
	res, err := p.check(ctx, dir, packages)
	status := "error"
	if res != nil {
		status = string(res.Status)
	}
	probeDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return res, err
}

func (p *Pip) check(ctx context.Context, dir string, packages []string) (*PipCheckResult, error) {
	if p.Clean {
		if err := p.uninstallAll(ctx, dir); err != nil {
			return nil, err
		}
	}

	res := &PipCheckResult{Packages: packages}

	installArgs := append([]string{"install", "-U"}, packages...)
	out, err := p.run(ctx, dir, "install", installArgs...)
	if err != nil {
		return nil, err
	}
	if out.code != 0 {
		logger.Info(fmt.Sprintf("pip install %s failed with %d", strings.Join(packages, " "), out.code))
		res.Status = StatusInstallError
		res.Details = out.stderr
		return res, nil
	}

	freeze, err := p.run(ctx, dir, "freeze", "freeze")
	if err != nil {
		return nil, err
	}
	if freeze.code != 0 {
		return nil, freeze.pipError()
	}
	res.Requirements = freeze.stdout

	check, err := p.run(ctx, dir, "check", "check")
	if err != nil {
		return nil, err
	}
	if check.code != 0 {
		res.Status = StatusCheckWarning
		res.Details = check.stdout
		return res, nil
	}

	res.Status = StatusSuccess
	return res, nil
}

// uninstallAll freezes the environment and removes every listed requirement.
func (p *Pip) uninstallAll(ctx context.Context, dir string) error {
	freeze, err := p.run(ctx, dir, "freeze-old", "freeze")
	if err != nil {
		return err
	}
	if freeze.code != 0 {
		return freeze.pipError()
	}
	if strings.TrimSpace(freeze.stdout) == "" {
		return nil
	}

	uninstall, err := p.run(ctx, dir, "uninstall", "uninstall", "-y", "-r", freeze.stdoutPath)
	if err != nil {
		return err
	}
	if uninstall.code != 0 {
		return uninstall.pipError()
	}
	return nil
}

type commandOutput struct {
	args       []string
	code       int
	stdout     string
	stderr     string
	stdoutPath string
}

func (o *commandOutput) pipError() *PipError {
	return &PipError{Command: o.args, ReturnCode: o.code, Output: o.stderr}
}

// run executes one pip subcommand with stdout and stderr written to
// files named after step inside dir. A non-zero exit is not an error.
func (p *Pip) run(ctx context.Context, dir, step string, args ...string) (*commandOutput, error) {
	cmdArgs := append(append([]string{}, p.Command[1:]...), args...)
	out := &commandOutput{
		args:       append([]string{p.Command[0]}, cmdArgs...),
		stdoutPath: filepath.Join(dir, step+".stdout"),
	}

	stdout, err := os.Create(out.stdoutPath)
	if err != nil {
		return nil, &PipError{Command: out.args, Err: err}
	}
	defer stdout.Close()
	stderrPath := filepath.Join(dir, step+".stderr")
	stderr, err := os.Create(stderrPath)
	if err != nil {
		return nil, &PipError{Command: out.args, Err: err}
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, p.Command[0], cmdArgs...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, &PipError{Command: out.args, Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		out.code = exitErr.ExitCode()
	default:
		return nil, &PipError{Command: out.args, Err: runErr}
	}

	b, err := os.ReadFile(out.stdoutPath)
	if err != nil {
		return nil, &PipError{Command: out.args, Err: err}
	}
	out.stdout = string(b)
	if b, err = os.ReadFile(stderrPath); err != nil {
		return nil, &PipError{Command: out.args, Err: err}
	}
	out.stderr = string(b)
	return out, nil
}
