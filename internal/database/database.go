package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/config"
	"github.com/KreativLabs-id/diskusibisnis/backend/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Database owns the connection pool. Components never reach for a global
// handle; they receive *Database (to open transactions) or the *gorm.DB of
// an open transaction.
type Database struct {
	DB         *gorm.DB
	driver     string
	maxRetries int
}

// Open connects using cfg.
func Open(cfg config.DatabaseConfig) (*Database, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	switch cfg.Driver {
	case DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger:  gormLogger,
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		if err != nil {
			return nil, fmt.Errorf("error opening database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("error getting database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)

		log.Println("✅ Database connected successfully")
		return &Database{DB: db, driver: DriverPostgres, maxRetries: cfg.MaxRetries}, nil

	case DriverSQLite:
		d, err := openSQLite(cfg.Path, gormLogger)
		if err != nil {
			return nil, err
		}
		d.maxRetries = cfg.MaxRetries
		log.Printf("✅ SQLite database opened at %s", cfg.Path)
		return d, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// OpenSQLite opens a quiet SQLite database at path. Used by tests and
// single-node development.
func OpenSQLite(path string) (*Database, error) {
	d, err := openSQLite(path, logger.Default.LogMode(logger.Silent))
	if err != nil {
		return nil, err
	}
	d.maxRetries = 3
	return d, nil
}

func openSQLite(path string, l logger.Interface) (*Database, error) {
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  l,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database instance: %w", err)
	}
	// SQLite only supports one writer at a time; one connection also
	// serializes transactions, standing in for row locks.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return &Database{DB: db, driver: DriverSQLite}, nil
}

// Driver returns "postgres" or "sqlite".
func (d *Database) Driver() string {
	return d.driver
}

// Migrate creates or updates the schema.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Answer{},
		&models.Vote{},
		&models.ReputationEntry{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}

	// At most one live grant per cause.
	err = d.DB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reputation_live_cause
		ON reputation_entries(cause_ref)
		WHERE reverses_id IS NULL AND reversed = false
	`).Error
	if err != nil {
		return fmt.Errorf("error creating live cause index: %w", err)
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// WithTx runs fn inside one transaction. Serialization failures and
// deadlocks are retried with the same inputs up to the configured bound;
// every other error rolls back and is returned as is.
func (d *Database) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = d.DB.WithContext(ctx).Transaction(fn)
		if err == nil || !IsTransient(err) || attempt >= d.maxRetries {
			return err
		}

		log.Printf("⚠️ Transaction retry %d/%d after transient error: %v", attempt+1, d.maxRetries, err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
}

// IsTransient reports whether err is a lock or serialization conflict that
// is safe to retry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// ForUpdate adds a row lock (SELECT ... FOR UPDATE) to the next query.
// SQLite ignores the clause; its single connection already serializes writers.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// IsNotFound reports whether err is gorm's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Health checks the health of the database connection by pinging the database.
func (d *Database) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := d.DB.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["driver"] = d.driver

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

// Close closes the database connection.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	log.Printf("Disconnected from %s database", d.driver)
	return sqlDB.Close()
}
