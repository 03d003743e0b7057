// Package db opens and owns the MySQL connection the statistics sources and
// the memory-table sync job query through gorm.
package db

import (
	"context"

	"gorm.io/gorm"
)

// Database is the interface for the database
type Database interface {
	DB() (*gorm.DB, error)
	Ping(ctx context.Context) error
	Close() error
}

type wrapped struct {
	db *gorm.DB
}

// Wrap adapts an already opened *gorm.DB to Database. Close closes the
// underlying pool.
func Wrap(gdb *gorm.DB) Database {
	return &wrapped{db: gdb}
}

func (w *wrapped) DB() (*gorm.DB, error) {
	if w.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return w.db, nil
}

func (w *wrapped) Ping(ctx context.Context) error {
	return ping(ctx, w.db)
}

func (w *wrapped) Close() error {
	return closeDB(w.db)
}

func ping(ctx context.Context, gdb *gorm.DB) error {
	if gdb == nil {
		return ErrConnectionNotEstablished
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.PingContext(ctx)
}

func closeDB(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
