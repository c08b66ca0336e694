// Package config reads service configuration from prefixed environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"poshub/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "AUTH_", "QUEUE_").
// Each module reads its own prefix and never reaches into another's keys
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf, e.g. cfg.Prefix("PROCESSOR_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Key returns the fully-qualified env var name for k
func (c Conf) Key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string { return strings.TrimSpace(os.Getenv(c.Key(k))) }

// must panics through the root logger when k is unset
func (c Conf) must(k string) string {
	v := c.get(k)
	if v == "" {
		logger.Get().Panic().Str("key", c.Key(k)).Msg("missing required env")
	}
	return v
}

// MustString returns the value of key or panics when unset
func (c Conf) MustString(key string) string { return c.must(key) }

// MustInt panics if key is unset or not an int
func (c Conf) MustInt(key string) int {
	s := c.must(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.Key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// MustDuration panics if key is unset or not a Go duration (250ms, 2s, 1h)
func (c Conf) MustDuration(key string) time.Duration {
	s := c.must(key)
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.Key(key)).Str("value", s).Msg("invalid duration")
	}
	return d
}

// MayString returns the value or def if unset
func (c Conf) MayString(key, def string) string {
	if v := c.get(key); v != "" {
		return v
	}
	return def
}

// MaySecret returns the value or def if unset. Secrets may span lines; a literal
// "\n" sequence is expanded so PEM blocks survive single-line env files.
// Values read here are never logged
func (c Conf) MaySecret(key, def string) string {
	v := c.get(key)
	if v == "" {
		return def
	}
	return strings.ReplaceAll(v, `\n`, "\n")
}

// MayInt returns the value or def; an invalid value logs a warning and falls back
func (c Conf) MayInt(key string, def int) int {
	s := c.get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
		return def
	}
	return v
}

// MayBool returns the value or def; an invalid value logs a warning and falls back
func (c Conf) MayBool(key string, def bool) bool {
	s := c.get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
		return def
	}
	return v
}

// MayDuration returns the value or def; an invalid value logs a warning and falls back
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.get(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
		return def
	}
	return d
}

// MayCSV splits a comma-separated value, dropping blanks; def if unset or empty
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.get(key)
	if s == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns one of allowed (in its canonical spelling), def if unset; panics on anything else
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	logger.Get().Panic().Str("key", c.Key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}

// MayAddr returns a listen address for key. A bare port ("4000") becomes ":4000";
// a port outside 1..65535 panics
func (c Conf) MayAddr(key, def string) string {
	s := c.MayString(key, def)
	if strings.Contains(s, ":") {
		return s
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		logger.Get().Panic().Str("key", c.Key(key)).Str("value", s).Msg("invalid TCP port; expected 1..65535")
	}
	return ":" + s
}
