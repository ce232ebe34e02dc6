package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yanizio/syncee/internal/config"
)

// SSH fetches over a native ssh connection.  One connection is opened per
// Fetch; a run makes at most four.
type SSH struct {
	Site config.Site
	Auth []ssh.AuthMethod
	// HostKeyCallback verifies the server; see KnownHosts.
	HostKeyCallback ssh.HostKeyCallback
	Log             *zap.SugaredLogger
}

// NewSSH builds an SSH fetcher from config.  Host keys are checked against
// known_hosts; authentication tries ssh-agent first, then the identity
// file (or ~/.ssh/id_ed25519 and ~/.ssh/id_rsa).
func NewSSH(site config.Site, opts config.SSH, log *zap.SugaredLogger) (*SSH, error) {
	home, _ := os.UserHomeDir()

	khPath := opts.KnownHosts
	if khPath == "" {
		khPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	hkc, err := knownhosts.New(khPath)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", khPath, err)
	}

	var auth []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	keys := []string{opts.IdentityFile}
	if opts.IdentityFile == "" {
		keys = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
	}
	var signers []ssh.Signer
	for _, p := range keys {
		pem, err := os.ReadFile(p)
		if err != nil {
			if opts.IdentityFile != "" {
				return nil, fmt.Errorf("identity file: %w", err)
			}
			continue
		}
		s, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		signers = append(signers, s)
	}
	if len(signers) > 0 {
		auth = append(auth, ssh.PublicKeys(signers...))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh credentials: start ssh-agent or set ssh.identity_file")
	}

	return &SSH{Site: site, Auth: auth, HostKeyCallback: hkc, Log: log}, nil
}

func (s *SSH) user() string {
	if s.Site.SSHUser != "" {
		return s.Site.SSHUser
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// Fetch runs the mysql command in a fresh session and returns its stdout.
func (s *SSH) Fetch(ctx context.Context, query string) ([]byte, error) {
	addr := net.JoinHostPort(s.Site.SSHHost, strconv.Itoa(s.Site.SSHPort))
	shown := "ssh " + s.Site.Destination() + ":" + strconv.Itoa(s.Site.SSHPort) + " " + Redacted(s.Site, query)
	if s.Log != nil {
		s.Log.Debugw("running command", "command", shown)
	}
	fail := func(err error, stderr string) error {
		return &CommandError{Command: shown, Stderr: stderr, Err: err}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fail(err, "")
	}
	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            s.user(),
		Auth:            s.Auth,
		HostKeyCallback: s.HostKeyCallback,
	})
	if err != nil {
		conn.Close()
		return nil, fail(err, "")
	}
	client := ssh.NewClient(cc, chans, reqs)
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	sess, err := client.NewSession()
	if err != nil {
		return nil, fail(err, "")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if err := sess.Run(MySQLCommand(s.Site, query)); err != nil {
		return nil, fail(err, stderr.String())
	}
	return stdout.Bytes(), nil
}
