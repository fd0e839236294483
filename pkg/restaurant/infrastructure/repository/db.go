package repository

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMySQL = "mysql"
	DriverPgx   = "pgx"
)

type Config struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	MaxConnections int
	ConnectTimeout time.Duration
}

func DSN(cfg Config) (string, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	switch cfg.Driver {
	case DriverMySQL:
		c := mysql.NewConfig()
		c.User = cfg.User
		c.Passwd = cfg.Password
		c.Net = "tcp"
		c.Addr = addr
		c.DBName = cfg.Name
		c.ParseTime = true
		c.Loc = time.UTC
		c.MultiStatements = true
		c.ClientFoundRows = true
		c.Timeout = cfg.ConnectTimeout
		return c.FormatDSN(), nil
	case DriverPgx:
		q := url.Values{}
		q.Set("sslmode", "disable")
		if cfg.ConnectTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     addr,
			Path:     "/" + cfg.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	default:
		return "", errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open connects and pings with exponential backoff until ctx is done.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}
	db.SetConnMaxLifetime(time.Hour)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		log.WithError(err).WithFields(log.Fields{
			"driver": cfg.Driver,
			"host":   cfg.Host,
			"retry":  next.String(),
		}).Warn("database is not reachable yet")
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

func usesReturning(db *sqlx.DB) bool {
	return sqlx.BindType(db.DriverName()) == sqlx.DOLLAR
}
