package remote

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/syncee/internal/config"
)

// Exec fetches through the local ssh binary.
type Exec struct {
	Site   config.Site
	Binary string // defaults to "ssh"
	Log    *zap.SugaredLogger
}

// Fetch runs the mysql command on the remote host and returns its stdout.
func (e *Exec) Fetch(ctx context.Context, query string) ([]byte, error) {
	bin := e.Binary
	if bin == "" {
		bin = "ssh"
	}
	shown := bin + " " + strings.Join(SSHArgs(e.Site, Redacted(e.Site, query)), " ")
	if e.Log != nil {
		e.Log.Debugw("running command", "command", shown)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, SSHArgs(e.Site, MySQLCommand(e.Site, query))...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Command: shown, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
