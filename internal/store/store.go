package store

import (
	"context"
	"fmt"
	"strconv"

	"atsforge/internal/config"
	"atsforge/internal/errors"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store wraps the database handle with repository methods
type Store struct {
	db     *gorm.DB
	logger *errors.Logger
}

// Open connects to the configured database and runs migrations
func Open(cfg config.DatabaseConfig, logger *errors.Logger, debug bool) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger, debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	logger.Info("Database ready", "driver", cfg.Driver)
	return store, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&SourceDocument{},
		&JobDescription{},
		&UserSettings{},
		&Optimization{},
	); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Stats holds row counts for the service stats endpoint
type Stats struct {
	Documents     int64 `json:"documents"`
	Jobs          int64 `json:"jobs"`
	Optimizations int64 `json:"optimizations"`
}

// GetStats counts stored rows per entity
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.db.WithContext(ctx).Model(&SourceDocument{}).Count(&stats.Documents).Error; err != nil {
		return nil, storeError("count documents", err)
	}
	if err := s.db.WithContext(ctx).Model(&JobDescription{}).Count(&stats.Jobs).Error; err != nil {
		return nil, storeError("count jobs", err)
	}
	if err := s.db.WithContext(ctx).Model(&Optimization{}).Count(&stats.Optimizations).Error; err != nil {
		return nil, storeError("count optimizations", err)
	}
	return &stats, nil
}

func storeError(operation string, err error) error {
	return errors.NewInternalError(errors.ErrCodeStoreFailed,
		fmt.Sprintf("database operation failed: %s", operation), err)
}
