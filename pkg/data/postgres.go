package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options locate the Postgres database.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TimeZone string
}

func (o Options) dsn() string {
	tz := o.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
		o.Host, o.User, o.Password, o.Database, o.Port, tz)
}

// GormStore keeps visitors in Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Postgres connects to the database and migrates the visitor table.
func Postgres(opts Options) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(opts.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Visitor{}); err != nil {
		return nil, fmt.Errorf("failed to migrate visitors: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Find(ctx context.Context, id uint) (*Visitor, error) {
	var v Visitor
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("visitor %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find visitor %d: %w", id, err)
	}
	return &v, nil
}

func (s *GormStore) Save(ctx context.Context, v *Visitor) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("failed to save visitor: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
