// Package recovery invokes the external recovery action (typically a
// reboot) once the watchdog's failure threshold is reached.
package recovery

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Trigger runs the recovery action. It is called exactly once, when the
// consecutive-failure threshold is reached; the watchdog never retries it.
type Trigger interface {
	Trigger(ctx context.Context, failures int) error
}

// CmdTrigger executes a shell command as the recovery action. The
// command may use {host}, {port}, and {failures} placeholders.
type CmdTrigger struct {
	command string
	host    string
	port    int
	log     *zap.SugaredLogger
}

// NewCmdTrigger creates a trigger that runs command via the system shell.
func NewCmdTrigger(command, host string, port int, log *zap.SugaredLogger) *CmdTrigger {
	return &CmdTrigger{command: command, host: host, port: port, log: log}
}

// Trigger runs the command, streaming its output to the watchdog's own
// stdout/stderr. The command's exit status is returned as-is so the
// process can exit with it.
func (t *CmdTrigger) Trigger(ctx context.Context, failures int) error {
	expanded := t.command
	expanded = strings.ReplaceAll(expanded, "{host}", t.host)
	expanded = strings.ReplaceAll(expanded, "{port}", fmt.Sprintf("%d", t.port))
	expanded = strings.ReplaceAll(expanded, "{failures}", fmt.Sprintf("%d", failures))

	t.log.Warnw("running recovery action", "command", expanded)

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, expanded)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// LogTrigger is used when no recovery command is configured: it only
// records that recovery would have fired.
type LogTrigger struct {
	log *zap.SugaredLogger
}

// NewLogTrigger creates a log-only trigger.
func NewLogTrigger(log *zap.SugaredLogger) *LogTrigger {
	return &LogTrigger{log: log}
}

func (t *LogTrigger) Trigger(ctx context.Context, failures int) error {
	t.log.Warnw("failure threshold reached, no recovery command configured", "failures", failures)
	return nil
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
