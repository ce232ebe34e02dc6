// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load` validates the top-level Config, then every Site on its own so a
// missing key is reported against the site that lacks it.  Field names in
// errors are the koanf keys (`db_password`, not `DBPassword`), matching
// what operators type into sites.yaml.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfiguration is wrapped by every validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

//
// validator instance (package-level singleton)
//

var v = func() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}()

// SiteError reports the keys a site entry is missing or has malformed.
type SiteError struct {
	Key    string
	Fields []string
	Given  Site
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("%s: site %q: bad or missing %s (required keys: %s; given: %s)",
		ErrInvalidConfiguration, e.Key, strings.Join(e.Fields, ", "),
		strings.Join(RequiredSiteKeys, ", "), e.Given)
}

func (e *SiteError) Unwrap() error { return ErrInvalidConfiguration }

//
// public API
//

// ValidateSite checks one site entry.
func ValidateSite(key string, s Site) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &SiteError{Key: key, Fields: fields, Given: s}
}

// validateStruct checks each site in key order, then the aggregate.
func validateStruct(c *Config) error {
	for _, k := range slices.Sorted(maps.Keys(c.Sites)) {
		if err := ValidateSite(k, c.Sites[k]); err != nil {
			return err
		}
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}
