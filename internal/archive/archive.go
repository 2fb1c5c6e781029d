// Package archive records finished and cancelled matches for the
// match-history consumer.
package archive

import (
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Summary struct {
	MatchID   string
	Mode      string
	Outcome   string
	Reason    string
	MapID     string
	TeamA     []string
	TeamB     []string
	CreatedAt time.Time
	EndedAt   time.Time
}

type Recorder interface {
	Record(s Summary) error
}

// Memory keeps summaries in process. Used in tests and when no database
// is configured.
type Memory struct {
	mu      sync.Mutex
	records []Summary
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, s)
	return nil
}

func (m *Memory) Records() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, len(m.records))
	copy(out, m.records)
	return out
}

// MatchRecord is the persisted row shape.
type MatchRecord struct {
	ID        uint   `gorm:"primarykey"`
	MatchID   string `gorm:"uniqueIndex;size:64"`
	Mode      string `gorm:"size:8"`
	Outcome   string `gorm:"size:16"`
	Reason    string `gorm:"size:32"`
	MapID     string `gorm:"size:64"`
	TeamA     string
	TeamB     string
	CreatedAt time.Time
	EndedAt   time.Time
}

type DB struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the match_records table.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&MatchRecord{}); err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Record(s Summary) error {
	rec := MatchRecord{
		MatchID:   s.MatchID,
		Mode:      s.Mode,
		Outcome:   s.Outcome,
		Reason:    s.Reason,
		MapID:     s.MapID,
		TeamA:     strings.Join(s.TeamA, ","),
		TeamB:     strings.Join(s.TeamB, ","),
		CreatedAt: s.CreatedAt,
		EndedAt:   s.EndedAt,
	}
	return d.db.Create(&rec).Error
}
