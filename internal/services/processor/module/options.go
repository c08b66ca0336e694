package module

import (
	"time"

	"poshub/internal/platform/config"
)

// Ledger names
const (
	LedgerAuto     = "auto"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"
)

// Options controls the processor and its worker
type Options struct {
	BatchSize      int
	MaxConcurrency int
	MessageTimeout time.Duration
	PollInterval   time.Duration
	ClaimTTL       time.Duration
	DoneTTL        time.Duration
	Ledger         string
	RedisPrefix    string
}

// FromConfig reads PROCESSOR_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("PROCESSOR_")
	return Options{
		BatchSize:      c.MayInt("BATCH_SIZE", 10),
		MaxConcurrency: c.MayInt("MAX_CONCURRENCY", 10),
		MessageTimeout: c.MayDuration("MESSAGE_TIMEOUT", 5*time.Second),
		PollInterval:   c.MayDuration("POLL_INTERVAL", 500*time.Millisecond),
		ClaimTTL:       c.MayDuration("CLAIM_TTL", 30*time.Second),
		DoneTTL:        c.MayDuration("DONE_TTL", 7*24*time.Hour),
		Ledger:         c.MayEnum("LEDGER", LedgerAuto, LedgerAuto, LedgerPostgres, LedgerRedis, LedgerMemory),
		RedisPrefix:    c.MayString("REDIS_PREFIX", "poshub:orders:"),
	}
}

// merge applies the non-zero fields of o onto base
func (base Options) merge(o Options) Options {
	if o.BatchSize != 0 {
		base.BatchSize = o.BatchSize
	}
	if o.MaxConcurrency != 0 {
		base.MaxConcurrency = o.MaxConcurrency
	}
	if o.MessageTimeout != 0 {
		base.MessageTimeout = o.MessageTimeout
	}
	if o.PollInterval != 0 {
		base.PollInterval = o.PollInterval
	}
	if o.ClaimTTL != 0 {
		base.ClaimTTL = o.ClaimTTL
	}
	if o.DoneTTL != 0 {
		base.DoneTTL = o.DoneTTL
	}
	if o.Ledger != "" {
		base.Ledger = o.Ledger
	}
	if o.RedisPrefix != "" {
		base.RedisPrefix = o.RedisPrefix
	}
	return base
}
