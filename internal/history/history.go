package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Filename is the database name inside the config dir.
const Filename = "history.db"

// Rotation is one attempt to change the wallpaper.
type Rotation struct {
	gorm.Model

	Kind      string `gorm:"index"`
	Source    string
	Input     string
	Output    string
	SourceURL string
	Converter string
	Duration  time.Duration
	Error     string
}

// OK reports whether the rotation installed a wallpaper.
func (r Rotation) OK() bool {
	return r.Error == ""
}

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.AutoMigrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Rotation{}); err != nil {
		return fmt.Errorf("auto migrate rotation table: %w", err)
	}
	return nil
}

// Record stores r, filling CreatedAt when unset.
func (s *Store) Record(r *Rotation) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("create rotation record: %w", err)
	}
	return nil
}

// Recent returns up to n rotations, newest first.
func (s *Store) Recent(n int) ([]Rotation, error) {
	var out []Rotation
	err := s.db.Order("created_at desc").Order("id desc").Limit(n).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query recent rotations: %w", err)
	}
	return out, nil
}

// Last returns the newest successful rotation, or nil when there is none.
func (s *Store) Last() (*Rotation, error) {
	var r Rotation
	err := s.db.Where("error = ?", "").Order("created_at desc").Order("id desc").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last rotation: %w", err)
	}
	return &r, nil
}

// Count returns the number of recorded rotations.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&Rotation{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count rotations: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
