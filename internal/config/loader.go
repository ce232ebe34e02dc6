// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/sites.yaml`.
  3. Environment variables prefixed `SYNCEE_`, where `__` maps to “.”
     (e.g., `SYNCEE_SITES__E__DB_PASSWORD → sites.e.db_password`).

After merging, the tree is unmarshalled into typed structs, defaults are
filled, `vault:` secrets are resolved, and the result is validated.  A
bad site fails the whole load so nothing reaches a remote host with a
half-built configuration.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read.
  • ERROR spans: YAML parse, env overlay, unmarshal, secret, validation.
  • INFO  span:  final “config loaded” with the site keys.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/sites.yaml`, so
    the binary works from any sub-directory of a project.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "SYNCEE_"

// vaultPrefix marks a secret reference: "vault:<mount>/<path>#<key>".
const vaultPrefix = "vault:"

// secretTTL bounds how long a resolved secret is reused within one run.
const secretTTL = 5 * time.Minute

// ErrNoSecretReader is returned when a vault: reference is present but no
// reader was supplied.
var ErrNoSecretReader = errors.New("vault reference without vault client")

// SecretReader resolves one key of a KV secret.  *vault.Client satisfies it.
type SecretReader interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SYNCEE_ROOT or climbs directories until
// conf/sites.yaml is found.  Falls back to the working directory.
func rootDir() string {
	if r := os.Getenv("SYNCEE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "sites.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, and validates.
// secrets may be nil when no site uses a vault: password.
func Load(ctx context.Context, secrets SecretReader) (*Config, error) {
	return LoadFile(ctx, filepath.Join(rootDir(), "conf", "sites.yaml"), secrets)
}

// LoadFile is Load with an explicit YAML path.  The root is the parent of
// the file's directory.
func LoadFile(ctx context.Context, yamlPath string, secrets SecretReader) (*Config, error) {
	root := filepath.Dir(filepath.Dir(yamlPath))
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: SYNCEE_SITES__E__DB_HOST → sites.e.db_host
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}
	cfg.withDefaults()
	cfg.Paths.Root = root

	if err := resolveSecrets(ctx, &cfg, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	zap.S().Infow("config loaded",
		"root", cfg.Paths.Root,
		"transport", cfg.Transport,
		"sites", slices.Sorted(maps.Keys(cfg.Sites)),
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// resolveSecrets swaps vault: references for their values in place.
func resolveSecrets(ctx context.Context, cfg *Config, secrets SecretReader) error {
	for key, s := range cfg.Sites {
		ref, ok := strings.CutPrefix(s.DBPassword, vaultPrefix)
		if !ok {
			continue
		}
		if secrets == nil {
			return fmt.Errorf("site %q: %w", key, ErrNoSecretReader)
		}
		path, field, ok := strings.Cut(ref, "#")
		if !ok || path == "" || field == "" {
			return fmt.Errorf("%w: site %q: vault reference must be vault:<path>#<key>", ErrInvalidConfiguration, key)
		}
		val, err := secrets.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("site %q: %w", key, err)
		}
		s.DBPassword = val
		cfg.Sites[key] = s
	}
	return nil
}

// Path returns the default sites.yaml location.
func Path() string { return filepath.Join(rootDir(), "conf", "sites.yaml") }
