package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/htverse/apiserver/config"
)

const (
	postgresDriver     = "postgres"
	applicationName    = "htverse-apiserver"
	defaultPingTimeout = 5 * time.Second
	pingRetryInterval  = 500 * time.Millisecond
	connMaxIdleTime    = 2 * time.Minute
	connMaxLifetime    = 30 * time.Minute
)

// PostgresURL builds the lib/pq and golang-migrate connection URL.
func PostgresURL(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	q := url.Values{}
	q.Set("sslmode", sslmode)
	q.Set("application_name", applicationName)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// OpenPostgres opens a pooled connection and pings it until it answers or
// cfg.ConnectTimeout elapses.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open(postgresDriver, PostgresURL(cfg))
	if err != nil {
		return nil, err
	}

	conn.SetConnMaxIdleTime(connMaxIdleTime)
	conn.SetConnMaxLifetime(connMaxLifetime)
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := waitForPing(ctx, conn, cfg.ConnectTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s@%s:%d: %w", cfg.DBName, cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

func waitForPing(ctx context.Context, conn *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		err := conn.PingContext(ctx)
		if err == nil {
			return nil
		}
		slog.Debug("postgres not ready", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(pingRetryInterval):
		}
	}
}
