package database

import (
	"fmt"
	"time"

	"atmservice/internal/config"
	"atmservice/internal/infrastructure/logger"
	"atmservice/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to the configured SQL database, sizes the pool and migrates
// the schema.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, maxOpen, maxIdle, err := dialect(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Gorm(log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Storage.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info("database connected", zap.String("driver", cfg.Storage.Driver))
	return db, nil
}

// Models lists every table the service owns.
func Models() []interface{} {
	return []interface{}{
		&model.Customer{},
		&model.Account{},
		&model.Transaction{},
		&model.OutboxMessage{},
	}
}

func dialect(cfg *config.Config) (gorm.Dialector, int, int, error) {
	switch cfg.Storage.Driver {
	case config.DriverMySQL:
		return mysql.Open(cfg.MySQL.DSN()), cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns, nil
	case config.DriverPostgres:
		return postgres.Open(cfg.Postgres.DSN()), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, nil
	}
	return nil, 0, 0, fmt.Errorf("no SQL dialect for storage driver %q", cfg.Storage.Driver)
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
