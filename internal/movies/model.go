package movies

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnh1125/jumboboxd/internal/users"
)

// Movie is the local copy of a catalog entry, created the first time a user
// references it.
type Movie struct {
	ID          uint   `gorm:"primaryKey"`
	ExternalID  string `gorm:"size:16;uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	Slug        string `gorm:"size:255;index"`
	Overview    string
	PosterPath  string
	ReleaseDate string `gorm:"size:32"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WatchedMovie struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_watched_user_movie,priority:1"`
	MovieID   uint       `gorm:"not null;uniqueIndex:idx_watched_user_movie,priority:2"`
	WatchedAt time.Time  `gorm:"not null;index"`
	Movie     Movie      `gorm:"constraint:OnDelete:CASCADE;"`
	User      users.User `gorm:"constraint:OnDelete:CASCADE;"`
}

type Rating struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	UserID    uint    `gorm:"not null;uniqueIndex:idx_rating_user_movie,priority:1"`
	MovieID   uint    `gorm:"not null;uniqueIndex:idx_rating_user_movie,priority:2"`
	Score     float64 `gorm:"not null"`
	Review    *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time  `gorm:"index"`
	Movie     Movie      `gorm:"constraint:OnDelete:CASCADE;"`
	User      users.User `gorm:"constraint:OnDelete:CASCADE;"`
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// WatchlistEntry is the join row between a user and a movie on their watchlist.
type WatchlistEntry struct {
	UserID    uint       `gorm:"primaryKey;autoIncrement:false"`
	MovieID   uint       `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time  `gorm:"index"`
	Movie     Movie      `gorm:"constraint:OnDelete:CASCADE;"`
	User      users.User `gorm:"constraint:OnDelete:CASCADE;"`
}

// Models lists every table owned by this package, for migrations.
func Models() []any {
	return []any{&Movie{}, &WatchedMovie{}, &Rating{}, &WatchlistEntry{}}
}
