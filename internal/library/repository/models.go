package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Library represents a registered library root in the database.
type Library struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"uniqueIndex;not null"`
	Path         string    `gorm:"uniqueIndex;not null"`
	Kind         string    `gorm:"type:varchar(16);not null"`
	Enabled      bool      `gorm:"not null"`
	WatchEnabled bool      `gorm:"not null"`
	ScanSchedule string    `gorm:"type:varchar(100)"`
	LastScanAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Movie is a catalog movie, identified per library by its provider id.
type Movie struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	LibraryID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movies_identity,priority:1"`
	Provider      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_movies_identity,priority:2"`
	ExternalID    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_movies_identity,priority:3"`
	Title         string    `gorm:"not null;index"`
	OriginalTitle string
	Year          int
	Overview      string   `gorm:"type:text"`
	Runtime       int      // minutes
	Genres        []string `gorm:"serializer:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Show is a catalog TV show.
type Show struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	LibraryID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_shows_identity,priority:1"`
	Provider      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_shows_identity,priority:2"`
	ExternalID    string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_shows_identity,priority:3"`
	Title         string    `gorm:"not null;index"`
	OriginalTitle string
	Year          int
	Overview      string   `gorm:"type:text"`
	Genres        []string `gorm:"serializer:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Seasons []Season `gorm:"foreignKey:ShowID;constraint:OnDelete:CASCADE"`
}

// Season is one season of a show.
type Season struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShowID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_seasons_show_number,priority:1"`
	Number    int       `gorm:"not null;uniqueIndex:idx_seasons_show_number,priority:2"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	Episodes []Episode `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE"`
}

// Episode is one episode of a season.
type Episode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SeasonID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_episodes_season_number,priority:1"`
	Number    int       `gorm:"not null;uniqueIndex:idx_episodes_season_number,priority:2"`
	Title     string
	AirDate   string `gorm:"type:varchar(10)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Candidate is a stored match candidate of an ambiguous or unmatched file.
type Candidate struct {
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Score      float64 `json:"score"`
}

// StoredPath is the id and last write time of a stored media file.
type StoredPath struct {
	ID        uuid.UUID
	UpdatedAt time.Time
}

// MediaFile is one file of a library and its match state.
type MediaFile struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	LibraryID     uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_media_files_library_path,priority:1"`
	Path          string      `gorm:"not null;uniqueIndex:idx_media_files_library_path,priority:2"`
	Size          int64       `gorm:"not null"`
	ModifiedAt    time.Time   `gorm:"not null"`
	Kind          string      `gorm:"type:varchar(16)"`
	MatchStatus   string      `gorm:"type:varchar(20);not null;index"`
	MatchReason   string      `gorm:"type:varchar(50)"`
	ExternalID    string      `gorm:"type:varchar(100);index"`
	Score         float64     `gorm:"not null"`
	UserConfirmed bool        `gorm:"not null"`
	Candidates    []Candidate `gorm:"serializer:json"`
	MovieID       *uuid.UUID  `gorm:"type:uuid;index"`
	EpisodeID     *uuid.UUID  `gorm:"type:uuid;index"`
	LastSeenJobID *uuid.UUID  `gorm:"type:uuid"` // job that last wrote the row
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScanHistory is the persisted summary of a finished scan job.
type ScanHistory struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"` // the job id
	LibraryID    uuid.UUID `gorm:"type:uuid;not null;index"`
	State        string    `gorm:"type:varchar(20);not null"`
	StartedAt    *time.Time
	FinishedAt   *time.Time `gorm:"index"`
	FilesSeen    int
	Matched      int
	Ambiguous    int
	Unmatched    int
	Failed       int
	Skipped      int
	FilesAdded   int
	FilesUpdated int
	FilesDeleted int
	ErrorMessage string `gorm:"type:text"`
	CreatedAt    time.Time
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (l *Library) BeforeCreate(*gorm.DB) error     { assignID(&l.ID); return nil }
func (m *Movie) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (s *Show) BeforeCreate(*gorm.DB) error        { assignID(&s.ID); return nil }
func (s *Season) BeforeCreate(*gorm.DB) error      { assignID(&s.ID); return nil }
func (e *Episode) BeforeCreate(*gorm.DB) error     { assignID(&e.ID); return nil }
func (f *MediaFile) BeforeCreate(*gorm.DB) error   { assignID(&f.ID); return nil }
func (h *ScanHistory) BeforeCreate(*gorm.DB) error { assignID(&h.ID); return nil }

// TableName customizations.
func (Library) TableName() string {
	return "libraries"
}

func (Movie) TableName() string {
	return "movies"
}

func (Show) TableName() string {
	return "shows"
}

func (Season) TableName() string {
	return "seasons"
}

func (Episode) TableName() string {
	return "episodes"
}

func (MediaFile) TableName() string {
	return "media_files"
}

func (ScanHistory) TableName() string {
	return "scan_history"
}
