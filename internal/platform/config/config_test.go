package config

import (
	"testing"
	"time"

	kit "poshub/internal/platform/testkit"
)

func TestPrefixNesting(t *testing.T) {
	c := New().Prefix("QUEUE_").Prefix("DLQ_")
	if got := c.Key("NAME"); got != "QUEUE_DLQ_NAME" {
		t.Fatalf("Key = %q, want QUEUE_DLQ_NAME", got)
	}
}

func TestMust(t *testing.T) {
	c := New().Prefix("AUTH_")
	t.Setenv("AUTH_ISSUER", "  https://auth.poshub.internal ")
	t.Setenv("AUTH_RETRIES", "3")
	t.Setenv("AUTH_BAD_INT", "three")
	t.Setenv("AUTH_TTL", "5m")

	if got := c.MustString("ISSUER"); got != "https://auth.poshub.internal" {
		t.Fatalf("MustString = %q", got)
	}
	if got := c.MustInt("RETRIES"); got != 3 {
		t.Fatalf("MustInt = %d", got)
	}
	if got := c.MustDuration("TTL"); got != 5*time.Minute {
		t.Fatalf("MustDuration = %v", got)
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	kit.MustPanic(t, func() { _ = c.MustInt("BAD_INT") })
}

func TestMayFallbacks(t *testing.T) {
	c := New().Prefix("PROCESSOR_")
	t.Setenv("PROCESSOR_BATCH_SIZE", "25")
	t.Setenv("PROCESSOR_MAX_CONCURRENCY", "lots")
	t.Setenv("PROCESSOR_POLL_INTERVAL", "250ms")
	t.Setenv("PROCESSOR_MESSAGE_TIMEOUT", "soon")
	t.Setenv("PROCESSOR_TRACE", "true")

	if got := c.MayInt("BATCH_SIZE", 10); got != 25 {
		t.Fatalf("MayInt = %d, want 25", got)
	}
	if got := c.MayInt("MAX_CONCURRENCY", 10); got != 10 {
		t.Fatalf("MayInt invalid = %d, want default", got)
	}
	if got := c.MayDuration("POLL_INTERVAL", time.Second); got != 250*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
	if got := c.MayDuration("MESSAGE_TIMEOUT", 5*time.Second); got != 5*time.Second {
		t.Fatalf("MayDuration invalid = %v", got)
	}
	if !c.MayBool("TRACE", false) {
		t.Fatal("MayBool should read true")
	}
	if got := c.MayString("LEDGER", "postgres"); got != "postgres" {
		t.Fatalf("MayString default = %q", got)
	}
}

func TestMaySecretExpandsNewlines(t *testing.T) {
	c := New().Prefix("AUTH_")
	t.Setenv("AUTH_PUBLIC_KEY_PEM", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)
	got := c.MaySecret("PUBLIC_KEY_PEM", "")
	want := "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----"
	if got != want {
		t.Fatalf("MaySecret = %q, want %q", got, want)
	}
}

func TestMayCSV(t *testing.T) {
	c := New()
	t.Setenv("SCOPES", " orders:read, ,orders:write ")
	got := c.MayCSV("SCOPES", nil)
	if len(got) != 2 || got[0] != "orders:read" || got[1] != "orders:write" {
		t.Fatalf("MayCSV = %v", got)
	}
	t.Setenv("EMPTY", " , ")
	if got := c.MayCSV("EMPTY", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("MayCSV empty = %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("AUTH_")
	t.Setenv("AUTH_ALGORITHM", "rs256")
	if got := c.MayEnum("ALGORITHM", "RS256", "RS256", "HS256"); got != "RS256" {
		t.Fatalf("MayEnum = %q, want canonical RS256", got)
	}
	t.Setenv("AUTH_ALGORITHM", "none")
	kit.MustPanic(t, func() { _ = c.MayEnum("ALGORITHM", "RS256", "RS256", "HS256") })
}

func TestMayAddr(t *testing.T) {
	c := New().Prefix("CORE_API_")
	if got := c.MayAddr("API_PORT", "4000"); got != ":4000" {
		t.Fatalf("MayAddr default = %q", got)
	}
	t.Setenv("CORE_API_API_PORT", "127.0.0.1:8080")
	if got := c.MayAddr("API_PORT", "4000"); got != "127.0.0.1:8080" {
		t.Fatalf("MayAddr host:port = %q", got)
	}
	t.Setenv("CORE_API_API_PORT", "70000")
	kit.MustPanic(t, func() { _ = c.MayAddr("API_PORT", "4000") })
}
