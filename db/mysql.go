package db

import (
	"context"
	"time"

	"github.com/dailyyoga/regstats/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type mysqlDatabase struct {
	logger logger.Logger
	db     *gorm.DB
}

// NewMySQL opens the connection pool described by cfg. Transient failures
// are retried up to cfg.ConnectAttempts times with a fixed delay.
func NewMySQL(ctx context.Context, log logger.Logger, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return open(ctx, log, cfg, mysql.Open(cfg.DSN()))
}

func open(ctx context.Context, log logger.Logger, cfg *Config, dialector gorm.Dialector) (Database, error) {
	gcfg := &gorm.Config{
		Logger:                                   newGormLogger(log, cfg.LogLevel, cfg.SlowThreshold),
		PrepareStmt:                              true,
		DisableAutomaticPing:                     true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ErrConnection(ctx.Err())
			case <-time.After(cfg.ConnectRetryDelay):
			}
		}

		gdb, err := connect(ctx, cfg, dialector, gcfg)
		if err == nil {
			log.Info("database connection established",
				zap.String("host", cfg.Host),
				zap.String("database", cfg.Database),
				zap.Int("attempt", attempt),
				zap.Int("max_open_conns", cfg.MaxOpenConns),
				zap.Int("max_idle_conns", cfg.MaxIdleConns),
			)
			return &mysqlDatabase{logger: log, db: gdb}, nil
		}

		lastErr = err
		if !IsTransient(err) {
			break
		}
		log.Warn("database connection failed, will retry",
			zap.String("host", cfg.Host),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ConnectAttempts),
			zap.Error(err),
		)
	}
	return nil, ErrConnection(lastErr)
}

func connect(ctx context.Context, cfg *Config, dialector gorm.Dialector, gcfg *gorm.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return gdb, nil
}

func (d *mysqlDatabase) DB() (*gorm.DB, error) {
	if d.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return d.db, nil
}

func (d *mysqlDatabase) Ping(ctx context.Context) error {
	return ping(ctx, d.db)
}

func (d *mysqlDatabase) Close() error {
	d.logger.Info("closing database connection")
	return closeDB(d.db)
}
