// internal/remote/remote.go
//
// Remote fetch collaborators.
//
// Context
// -------
// A sync pass needs raw `mysql --vertical` text for one query.  How that
// text is produced is a transport decision:
//
//   • Exec:   shells out to the local `ssh` binary, honouring
//             ~/.ssh/config, agents, and jump hosts exactly as the operator
//             already uses them.
//   • SSH:    native golang.org/x/crypto/ssh client, no ssh binary needed.
//   • Direct: talks MySQL itself and renders rows in vertical format, for
//             databases reachable without a shell hop (tunnels, VPN).
//
// All three satisfy Fetcher, so the parser never knows the difference.
//
// Notes
// -----
//   • No retries and no timeout at this layer.  A hung remote command
//     blocks the run; callers that need a bound set one on ctx.
//   • Commands are logged with the password redacted.
package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yanizio/syncee/internal/config"
)

// Fetcher runs one query and returns the raw vertical dump.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]byte, error)
}

// mysqlOptions makes the client print unescaped, vertical rows.
var mysqlOptions = []string{"--batch", "--raw", "--vertical"}

// CommandError is returned when the remote command does not succeed.
// Command is already redacted.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command failed: %s: %v: %s", e.Command, e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("command failed: %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// MySQLCommand returns the shell command line that runs query on the
// remote host.  Every value is single-quoted for the remote shell.
func MySQLCommand(site config.Site, query string) string {
	return mysqlCommand(site, query, site.DBPassword)
}

// Redacted is MySQLCommand with the password masked.
func Redacted(site config.Site, query string) string {
	return mysqlCommand(site, query, "****")
}

func mysqlCommand(site config.Site, query, password string) string {
	args := []string{
		"mysql",
		"--execute=" + shellQuote(query),
		"--host=" + shellQuote(site.DBHost),
	}
	if site.DBPort != 0 && site.DBPort != config.DefaultDBPort {
		args = append(args, "--port="+strconv.Itoa(site.DBPort))
	}
	args = append(args,
		"--user="+shellQuote(site.DBUser),
		"--password="+shellQuote(password),
	)
	args = append(args, mysqlOptions...)
	args = append(args, shellQuote(site.DBName))
	return strings.Join(args, " ")
}

// SSHArgs returns the argv (without the program) for the ssh binary.
func SSHArgs(site config.Site, remoteCmd string) []string {
	var args []string
	if site.SSHPort != 0 && site.SSHPort != config.DefaultSSHPort {
		args = append(args, "-p", strconv.Itoa(site.SSHPort))
	}
	return append(args, site.Destination(), remoteCmd)
}

// shellQuote wraps s in single quotes unless it is made only of characters
// that no POSIX shell treats specially.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("@%+=:,./_-", r)
}
