package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/nexuscrm/tenantcrm/internal/config"
)

// TiDBConnection represents a TiDB database connection.
// sql.DB is already safe for concurrent use and pools its own connections.
type TiDBConnection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// Connect opens and pings a connection pool for cfg
func Connect(ctx context.Context, cfg *config.Config) (*TiDBConnection, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns to avoid churning ephemeral ports
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	glog.Infof("Connected to database %s on %s:%d", cfg.DBName, cfg.DBHost, cfg.DBPort)
	return &TiDBConnection{db: db}, nil
}

// DSN builds the driver connection string. Remote hosts (TiDB Cloud) use TLS.
func DSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.MultiStatements = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	if isRemoteHost(cfg.DBHost) {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.DBHost,
			}); err != nil {
				glog.Errorf("Failed to register TLS config: %v", err)
			}
		})
		mc.TLSConfig = "tidb"
	}
	return mc.FormatDSN()
}

func isRemoteHost(host string) bool {
	return host != "" && host != "127.0.0.1" && host != "localhost"
}

// DB returns the underlying *sql.DB connection
func (c *TiDBConnection) DB() *sql.DB {
	return c.db
}

// Ping checks connectivity for health checks
func (c *TiDBConnection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *TiDBConnection) Close() error {
	return c.db.Close()
}
