/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package sqlstore provides a ratelimit.LogStore on top of the api_rate_limits SQL table.
// PostgreSQL and SQLite are supported.
//
// The store is not atomic: two concurrent checks may both see a count below the quota and both be admitted.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/ratelimit"
)

// Row is a single row of the api_rate_limits table.
type Row struct {
	ID           string    `gorm:"primaryKey;size:32"`
	UserID       string    `gorm:"not null;index:idx_api_rate_limits_lookup,priority:1"`
	FunctionName string    `gorm:"not null;index:idx_api_rate_limits_lookup,priority:2"`
	IPAddress    string    `gorm:"size:64"`
	Timestamp    time.Time `gorm:"not null;index:idx_api_rate_limits_lookup,priority:3;index:idx_api_rate_limits_timestamp"`
	CreatedAt    time.Time
}

// TableName returns the name of the table.
func (Row) TableName() string {
	return "api_rate_limits"
}

var timestampColumn = clause.Column{Name: "timestamp"}

// Store is a ratelimit.LogStore backed by a SQL database.
type Store struct {
	db *gorm.DB
}

var (
	_ ratelimit.LogStore = (*Store)(nil)
	_ ratelimit.Pruner   = (*Store)(nil)
)

// Opts represents options for Open.
type Opts struct {
	MaxOpenConns int
	Logger       log.FieldLogger
	// SlowQueryThreshold is the duration after which a query is logged at warn level. Zero disables it.
	SlowQueryThreshold time.Duration
}

// Open connects to the database described by dsn.
// Supported forms are "postgres://...", "postgresql://..." and "sqlite://path/to/file.db".
func Open(dsn string, opts Opts) (*Store, error) {
	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dial = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		dial = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported database DSN, expected postgres:// or sqlite:// prefix")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(log.OrDisabled(opts.Logger), opts.SlowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, fmt.Errorf("get database handle: %w", dbErr)
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return New(db), nil
}

// New creates a new Store on top of an already opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the api_rate_limits table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("migrate api_rate_limits: %w", err)
	}
	return nil
}

// CountSince returns the number of rows of the user and operation with a timestamp not before since.
func (s *Store) CountSince(ctx context.Context, userID, operation string, since time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Row{}).
		Where("user_id = ? AND function_name = ?", userID, operation).
		Where(clause.Gte{Column: timestampColumn, Value: since.UTC()}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count api_rate_limits: %w", err)
	}
	return int(count), nil
}

// Append inserts the record.
func (s *Store) Append(ctx context.Context, rec ratelimit.Record) error {
	row := Row{
		ID:           rec.ID,
		UserID:       rec.UserID,
		FunctionName: rec.Operation,
		IPAddress:    rec.IPAddress,
		Timestamp:    rec.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert into api_rate_limits: %w", err)
	}
	return nil
}

// DeleteBefore removes rows with a timestamp before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where(clause.Lt{Column: timestampColumn, Value: cutoff.UTC()}).Delete(&Row{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete from api_rate_limits: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connections.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
