package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Credentials holds the MySQL credential set.
type Credentials struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// ConnectTimeout is in milliseconds.
	ConnectTimeout int  `mapstructure:"connectTimeout"`
	SSL            bool `mapstructure:"ssl"`
}

const defaultConnectTimeout = 10 * time.Second

// Opener opens a database handle for a credential set.
type Opener func(ctx context.Context, creds Credentials) (*sqlx.DB, error)

// Config builds the driver configuration for creds.
func (c Credentials) Config() *gomysql.Config {
	cfg := gomysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"

	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(port))
	cfg.DBName = c.Database

	cfg.Timeout = defaultConnectTimeout
	if c.ConnectTimeout > 0 {
		cfg.Timeout = time.Duration(c.ConnectTimeout) * time.Millisecond
	}
	if c.SSL {
		cfg.TLSConfig = "true"
	}
	cfg.ParseTime = true
	cfg.MultiStatements = false
	return cfg
}

// OpenMySQL connects to the server described by creds and verifies the
// connection with a ping.
func OpenMySQL(ctx context.Context, creds Credentials) (*sqlx.DB, error) {
	cfg := creds.Config()

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Addr, err)
	}

	return db, nil
}
