package store

import (
	"time"

	"poshub/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
}

// FromConfig reads SERVICE_* keys. A backend is enabled when its url or addr is set
func FromConfig(cfg config.Conf, app string) Config {
	svc := cfg.Prefix("SERVICE_")
	pgc := svc.Prefix("PGSQL_")
	chc := svc.Prefix("CLICKHOUSE_")
	rc := svc.Prefix("REDIS_")

	out := Config{AppName: app}

	out.PG.URL = pgc.MaySecret("DBURL", "")
	out.PG.Enabled = out.PG.URL != ""
	out.PG.MaxConns = int32(pgc.MayInt("MAX_CONNS", 8))
	out.PG.SlowQueryMs = pgc.MayInt("SLOW_MS", 200)
	out.PG.LogSQL = pgc.MayBool("LOG_SQL", false)
	out.PG.ConnectRetries = pgc.MayInt("CONNECT_RETRIES", 20)
	out.PG.PingTimeout = pgc.MayDuration("PING_TIMEOUT", 3*time.Second)

	out.CH.URL = chc.MaySecret("DBURL", "")
	out.CH.Enabled = out.CH.URL != ""

	out.RDS.Addr = rc.MayString("ADDR", "")
	out.RDS.Enabled = out.RDS.Addr != ""
	out.RDS.DB = rc.MayInt("DB", 0)

	return out
}
