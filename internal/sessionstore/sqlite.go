package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sessionRow is the gorm model backing the durable session store. The
// profile is stored as JSON so the backend can add fields without a
// schema change.
type sessionRow struct {
	Role        string `gorm:"primaryKey"`
	PrincipalID string
	Token       string
	ProfileJSON string
	UpdatedAt   time.Time
}

func (sessionRow) TableName() string { return "sessions" }

// SQLiteStore is a Store backed by a local SQLite file, so a session
// survives process restarts.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the session database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrating session db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(role string) (*Record, error) {
	var row sessionRow
	err := s.db.First(&row, "role = ?", role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	rec := Record{
		PrincipalID: row.PrincipalID,
		Token:       row.Token,
	}
	if row.ProfileJSON != "" {
		if err := json.Unmarshal([]byte(row.ProfileJSON), &rec.Profile); err != nil {
			return nil, fmt.Errorf("decoding stored profile: %w", err)
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) Save(role string, rec Record) error {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	row := sessionRow{
		Role:        role,
		PrincipalID: rec.PrincipalID,
		Token:       rec.Token,
		ProfileJSON: string(profile),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(role string) error {
	if err := s.db.Delete(&sessionRow{}, "role = ?", role).Error; err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
