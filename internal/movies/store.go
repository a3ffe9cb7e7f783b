package movies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMovieNotFound  = errors.New("movie not found")
	ErrNotWatched     = errors.New("movie not watched")
	ErrRatingNotFound = errors.New("rating not found")
)

// Store persists movies and the per-user membership rows that reference them.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn against a store bound to a single transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) FindMovie(ctx context.Context, externalID string) (*Movie, error) {
	var m Movie
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find movie: %w", err)
	}
	return &m, nil
}

// EnsureMovie inserts m unless a row with the same external id exists, then
// returns whichever row is stored. Concurrent callers converge on one row.
func (s *Store) EnsureMovie(ctx context.Context, m *Movie) (*Movie, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(m).Error
	if err != nil {
		return nil, fmt.Errorf("insert movie: %w", err)
	}
	return s.FindMovie(ctx, m.ExternalID)
}

// UpsertWatched records the movie as watched at the given time, refreshing
// watched_at when the row already exists.
func (s *Store) UpsertWatched(ctx context.Context, userID, movieID uint, at time.Time) (*WatchedMovie, error) {
	w := WatchedMovie{UserID: userID, MovieID: movieID, WatchedAt: at}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"watched_at"}),
	}).Omit(clause.Associations).Create(&w).Error
	if err != nil {
		return nil, fmt.Errorf("upsert watched: %w", err)
	}
	return s.GetWatched(ctx, userID, movieID)
}

func (s *Store) GetWatched(ctx context.Context, userID, movieID uint) (*WatchedMovie, error) {
	var w WatchedMovie
	err := s.db.WithContext(ctx).
		Preload("Movie").
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotWatched
	}
	if err != nil {
		return nil, fmt.Errorf("get watched: %w", err)
	}
	return &w, nil
}

// DeleteWatched reports how many rows were removed.
func (s *Store) DeleteWatched(ctx context.Context, userID, movieID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&WatchedMovie{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete watched: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) ListWatched(ctx context.Context, userID uint, offset, limit int) ([]WatchedMovie, int64, error) {
	q := s.db.WithContext(ctx).Model(&WatchedMovie{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count watched: %w", err)
	}

	var items []WatchedMovie
	err := q.Preload("Movie").
		Order("watched_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list watched: %w", err)
	}
	return items, total, nil
}

// AddToWatchlist reports whether a new membership row was created.
func (s *Store) AddToWatchlist(ctx context.Context, userID, movieID uint, at time.Time) (bool, error) {
	e := WatchlistEntry{UserID: userID, MovieID: movieID, CreatedAt: at}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).Create(&e)
	if res.Error != nil {
		return false, fmt.Errorf("add to watchlist: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RemoveFromWatchlist reports whether a membership row was removed.
func (s *Store) RemoveFromWatchlist(ctx context.Context, userID, movieID uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&WatchlistEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("remove from watchlist: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) InWatchlist(ctx context.Context, userID, movieID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&WatchlistEntry{}).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check watchlist: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListWatchlist(ctx context.Context, userID uint, offset, limit int) ([]WatchlistEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&WatchlistEntry{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count watchlist: %w", err)
	}

	var items []WatchlistEntry
	err := q.Preload("Movie").
		Order("created_at DESC").Order("movie_id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list watchlist: %w", err)
	}
	return items, total, nil
}

// UpsertRating stores r, replacing score and review of an existing rating for
// the same user and movie, and returns the stored row.
func (s *Store) UpsertRating(ctx context.Context, r *Rating) (*Rating, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "review", "updated_at"}),
	}).Omit(clause.Associations).Create(r).Error
	if err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}

	var stored Rating
	err = s.db.WithContext(ctx).
		Preload("User").Preload("Movie").
		Where("user_id = ? AND movie_id = ?", r.UserID, r.MovieID).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("reload rating: %w", err)
	}
	return &stored, nil
}

// GetRating reports ErrRatingNotFound for ids that are not UUIDs; postgres
// would reject them as invalid input instead.
func (s *Store) GetRating(ctx context.Context, id string) (*Rating, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRatingNotFound
	}
	var r Rating
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &r, nil
}

func (s *Store) DeleteRating(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrRatingNotFound
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Rating{})
	if res.Error != nil {
		return fmt.Errorf("delete rating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRatingNotFound
	}
	return nil
}

// RatingQuery narrows ListRatings. Nil fields do not filter.
type RatingQuery struct {
	UserID  *uint
	MovieID *uint
}

func (s *Store) ListRatings(ctx context.Context, rq RatingQuery, offset, limit int) ([]Rating, int64, error) {
	q := s.db.WithContext(ctx).Model(&Rating{})
	if rq.UserID != nil {
		q = q.Where("user_id = ?", *rq.UserID)
	}
	if rq.MovieID != nil {
		q = q.Where("movie_id = ?", *rq.MovieID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ratings: %w", err)
	}

	var items []Rating
	err := q.Preload("User").Preload("Movie").
		Order("updated_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list ratings: %w", err)
	}
	return items, total, nil
}

// Stats counts a user's membership rows.
type Stats struct {
	Watched   int64 `json:"watched"`
	Watchlist int64 `json:"watchlist"`
	Ratings   int64 `json:"ratings"`
}

func (s *Store) Counts(ctx context.Context, userID uint) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&WatchedMovie{}).Where("user_id = ?", userID).Count(&st.Watched).Error; err != nil {
		return Stats{}, fmt.Errorf("count watched: %w", err)
	}
	if err := db.Model(&WatchlistEntry{}).Where("user_id = ?", userID).Count(&st.Watchlist).Error; err != nil {
		return Stats{}, fmt.Errorf("count watchlist: %w", err)
	}
	if err := db.Model(&Rating{}).Where("user_id = ?", userID).Count(&st.Ratings).Error; err != nil {
		return Stats{}, fmt.Errorf("count ratings: %w", err)
	}
	return st, nil
}
