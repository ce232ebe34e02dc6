package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sitesYAML = `
transport: exec
sites:
  e:
    label: English
    ssh_host: example.com
    db_name: ee
    db_user: bob
    db_password: secret
  s:
    label: Spanish
    ssh_host: example.com
    ssh_user: alice
    ssh_port: 22022
    db_host: mysql.example.com
    db_name: ee
    db_user: bob
    db_password: secret
    site_id: 2
    site_name: es
`

func writeConf(t *testing.T, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "conf")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(context.Background(), writeConf(t, sitesYAML), nil)
	require.NoError(t, err)

	require.Equal(t, TransportExec, cfg.Transport)
	require.Equal(t, "utf8", cfg.Charset)

	e, ok := cfg.Site("e")
	require.True(t, ok)
	require.Equal(t, "e", e.Key)
	require.Equal(t, DefaultSSHPort, e.SSHPort)
	require.Equal(t, DefaultDBHost, e.DBHost)
	require.Equal(t, DefaultDBPort, e.DBPort)
	require.Equal(t, DefaultSiteID, e.SiteID)
	require.Empty(t, e.SiteName)
	require.Equal(t, "example.com", e.Destination())

	s, ok := cfg.Site("s")
	require.True(t, ok)
	require.Equal(t, 22022, s.SSHPort)
	require.Equal(t, "mysql.example.com", s.DBHost)
	require.Equal(t, 2, s.SiteID)
	require.Equal(t, "es", s.SiteName)
	require.Equal(t, "alice@example.com", s.Destination())
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("SYNCEE_SITES__E__DB_HOST", "db.internal")
	t.Setenv("SYNCEE_DEBUG", "true")

	cfg, err := LoadFile(context.Background(), writeConf(t, sitesYAML), nil)
	require.NoError(t, err)
	require.True(t, cfg.Debug)

	e, _ := cfg.Site("e")
	require.Equal(t, "db.internal", e.DBHost)
}

func TestLoadFile_MissingRequired(t *testing.T) {
	body := `
sites:
  e:
    ssh_host: example.com
    db_name: ee
    db_password: secret
`
	_, err := LoadFile(context.Background(), writeConf(t, body), nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidConfiguration))

	var se *SiteError
	require.True(t, errors.As(err, &se))
	require.Equal(t, []string{"db_user"}, se.Fields)

	msg := err.Error()
	for _, k := range RequiredSiteKeys {
		require.Contains(t, msg, k)
	}
	require.NotContains(t, msg, "secret", "password must be masked")
}

func TestLoadFile_BadTransport(t *testing.T) {
	body := strings.Replace(sitesYAML, "transport: exec", "transport: telnet", 1)
	_, err := LoadFile(context.Background(), writeConf(t, body), nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadFile_NoSites(t *testing.T) {
	_, err := LoadFile(context.Background(), writeConf(t, "debug: true\n"), nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadFile_MultiCharKey(t *testing.T) {
	body := strings.Replace(sitesYAML, "  e:\n", "  en:\n", 1)
	_, err := LoadFile(context.Background(), writeConf(t, body), nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	v, ok := f[path+"#"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestLoadFile_VaultSecret(t *testing.T) {
	body := strings.Replace(sitesYAML, "db_password: secret\n  s:", "db_password: vault:secret/ee#db_password\n  s:", 1)
	p := writeConf(t, body)

	_, err := LoadFile(context.Background(), p, nil)
	require.ErrorIs(t, err, ErrNoSecretReader)

	cfg, err := LoadFile(context.Background(), p, fakeSecrets{"secret/ee#db_password": "from-vault"})
	require.NoError(t, err)
	e, _ := cfg.Site("e")
	require.Equal(t, "from-vault", e.DBPassword)
}

func TestLoadFile_BadVaultRef(t *testing.T) {
	body := strings.Replace(sitesYAML, "db_password: secret\n  s:", "db_password: vault:secret/ee\n  s:", 1)
	_, err := LoadFile(context.Background(), writeConf(t, body), fakeSecrets{})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestSiteString_MasksPassword(t *testing.T) {
	s := Site{SSHHost: "h", DBPassword: "hunter2"}.withDefaults()
	require.NotContains(t, s.String(), "hunter2")
	require.Contains(t, s.String(), "****")
}

func TestValidateSite(t *testing.T) {
	err := ValidateSite("x", Site{SSHPort: 70000})
	var se *SiteError
	require.True(t, errors.As(err, &se))
	require.ElementsMatch(t, []string{"ssh_host", "ssh_port", "db_name", "db_user", "db_password"}, se.Fields)
}
