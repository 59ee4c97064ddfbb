package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Filter narrows List; the zero value returns every session.
type Filter struct {
	BoothID  int
	DeviceID string
}

func (r *Repo) Insert(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Session, error) {
	q := r.db.WithContext(ctx)
	if f.BoothID > 0 {
		q = q.Where("booth_id = ?", f.BoothID)
	}
	if strings.TrimSpace(f.DeviceID) != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	var rows []Session
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
