package ch

import (
	"context"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
)

type client struct {
	cfg  *Config
	log  logger.Logger
	conn driver.Conn

	mu     sync.RWMutex
	closed bool
	writer *defaultWriter
}

// NewClient opens a native connection and pings it before returning.
func NewClient(ctx context.Context, cfg *Config, log logger.Logger) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(cfg.options())
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, ErrConnection(err)
	}
	log.Info("connected to clickhouse",
		zap.Strings("hosts", cfg.Hosts),
		zap.String("database", cfg.Database),
	)
	return &client{cfg: cfg, log: log, conn: conn}, nil
}

func (c *Config) options() *clickhouse.Options {
	return &clickhouse.Options{
		Addr: c.Hosts,
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		DialTimeout: c.DialTimeout,
		Debug:       c.Debug,
		Settings:    c.Settings,
	}
}

// Writer returns the shared batch writer. The caller starts it.
func (c *client) Writer() (Writer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrWriterClosed
	}
	if c.writer == nil {
		c.writer = newWriter(connInserter{conn: c.conn}, c.cfg.WriterConfig, c.log)
	}
	return c.writer, nil
}

func (c *client) Exec(ctx context.Context, query string, args ...any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.conn.Exec(ctx, query, args...); err != nil {
		c.log.Error("clickhouse exec failed", zap.String("query", query), zap.Error(err))
		return err
	}
	return nil
}

// Close drains the writer before closing the connection. It is idempotent.
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.log.Warn("clickhouse writer close failed", zap.Error(err))
		}
	}
	if err := c.conn.Close(); err != nil {
		return ErrConnection(err)
	}
	c.log.Info("clickhouse connection closed")
	return nil
}

// connInserter sends one batch per insert through the native protocol.
type connInserter struct {
	conn driver.Conn
}

func (i connInserter) insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	batch, err := i.conn.PrepareBatch(ctx, insertQuery(table, columns))
	if err != nil {
		return ErrInsert(table, err)
	}
	for _, values := range rows {
		if err := batch.Append(values...); err != nil {
			_ = batch.Abort()
			return ErrInsert(table, err)
		}
	}
	if err := batch.Send(); err != nil {
		return ErrInsert(table, err)
	}
	return nil
}
