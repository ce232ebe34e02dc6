// internal/config/model.go
//
// Typed configuration model for syncee.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                     – dotenv values,
//   • `conf/sites.yaml`                        – primary static file,
//   • `SYNCEE_`-prefixed environment overrides – highest precedence.
//
// Any db_password beginning with `vault:` is resolved through Vault
// *before* validation, so the model never keeps Vault URIs.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`; the validator reports fields by the same
//     names so error messages match the YAML keys.
//   • Optional site fields are filled by `withDefaults()` once, right after
//     unmarshal.  After Load returns nothing mutates a Site.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "fmt"

// Site defaults.
const (
	DefaultSSHPort = 22
	DefaultDBHost  = "localhost"
	DefaultDBPort  = 3306
	DefaultSiteID  = 1
)

// RequiredSiteKeys lists the keys every site entry must set.
var RequiredSiteKeys = []string{"ssh_host", "db_name", "db_user", "db_password"}

//
// Site section
//

// Site holds connection parameters for one ExpressionEngine install.
type Site struct {
	Key   string `koanf:"-"`
	Label string `koanf:"label"`

	SSHHost string `koanf:"ssh_host" validate:"required"`
	SSHUser string `koanf:"ssh_user"`
	SSHPort int    `koanf:"ssh_port" validate:"omitempty,min=1,max=65535"`

	DBHost     string `koanf:"db_host"`
	DBPort     int    `koanf:"db_port" validate:"omitempty,min=1,max=65535"`
	DBName     string `koanf:"db_name"     validate:"required"`
	DBUser     string `koanf:"db_user"     validate:"required"`
	DBPassword string `koanf:"db_password" validate:"required"`

	// SiteID is exp_sites.site_id.  SiteName, when blank, is looked up
	// from exp_sites before the first kind is synced.
	SiteID   int    `koanf:"site_id" validate:"omitempty,min=1"`
	SiteName string `koanf:"site_name"`
}

func (s Site) withDefaults() Site {
	if s.SSHPort == 0 {
		s.SSHPort = DefaultSSHPort
	}
	if s.DBHost == "" {
		s.DBHost = DefaultDBHost
	}
	if s.DBPort == 0 {
		s.DBPort = DefaultDBPort
	}
	if s.SiteID == 0 {
		s.SiteID = DefaultSiteID
	}
	return s
}

// Destination returns "[user@]host" for ssh.
func (s Site) Destination() string {
	if s.SSHUser == "" {
		return s.SSHHost
	}
	return s.SSHUser + "@" + s.SSHHost
}

// String renders the site with the password masked.
func (s Site) String() string {
	pw := ""
	if s.DBPassword != "" {
		pw = "****"
	}
	return fmt.Sprintf(
		"{ssh_host:%q ssh_user:%q ssh_port:%d db_host:%q db_port:%d db_name:%q db_user:%q db_password:%q site_id:%d site_name:%q}",
		s.SSHHost, s.SSHUser, s.SSHPort, s.DBHost, s.DBPort, s.DBName, s.DBUser, pw, s.SiteID, s.SiteName,
	)
}

//
// SSH section
//

// SSH tunes the native ssh transport.  Both paths are optional.
type SSH struct {
	KnownHosts   string `koanf:"known_hosts"`
	IdentityFile string `koanf:"identity_file"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime.  `Root` is SYNCEE_ROOT or the directory
// holding conf/sites.yaml.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Transport names.
const (
	TransportExec  = "exec"
	TransportSSH   = "ssh"
	TransportMySQL = "mysql"
)

// Config is the immutable aggregate returned by Load().
type Config struct {
	Debug       bool   `koanf:"debug"`
	Transport   string `koanf:"transport" validate:"oneof=exec ssh mysql"`
	Charset     string `koanf:"charset"   validate:"oneof=utf8 latin1"`
	OutputDir   string `koanf:"output_dir"`
	MetricsFile string `koanf:"metrics_file"`

	SSH   SSH             `koanf:"ssh"`
	Sites map[string]Site `koanf:"sites" validate:"required,min=1,dive,keys,len=1,endkeys"`
	Paths Paths           `koanf:"-"`
}

func (c *Config) withDefaults() {
	if c.Transport == "" {
		c.Transport = TransportExec
	}
	if c.Charset == "" {
		c.Charset = "utf8"
	}
	for k, s := range c.Sites {
		s.Key = k
		c.Sites[k] = s.withDefaults()
	}
}

// Site returns the site registered under key.
func (c *Config) Site(key string) (Site, bool) {
	s, ok := c.Sites[key]
	return s, ok
}
