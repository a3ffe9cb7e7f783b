package movies

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gosimple/slug"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/catalog"
	"github.com/nnh1125/jumboboxd/internal/users"
)

const (
	MinScore  = 1.0
	MaxScore  = 5.0
	ScoreStep = 0.5
)

// MovieSource materializes a catalog entry the first time it is referenced.
type MovieSource interface {
	FetchMovie(ctx context.Context, externalID int) (*Movie, error)
}

// UserLookup resolves a token subject to its local user row.
type UserLookup interface {
	FindByExternalID(ctx context.Context, externalID string) (*users.User, error)
}

// MovieFallback carries client-supplied details used instead of a catalog
// fetch when a movie is first stored. It is ignored without a title.
type MovieFallback struct {
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate string
}

type Option func(*Service)

// WithClock overrides the time source used for watched_at and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store  *Store
	users  UserLookup
	source MovieSource
	now    func() time.Time
	log    *log.Logger
}

func NewService(store *Store, userLookup UserLookup, source MovieSource, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  userLookup,
		source: source,
		now:    time.Now,
		log:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) resolveUser(ctx context.Context, subject string) (*users.User, error) {
	if subject == "" {
		return nil, apperr.Unauthorized("unauthenticated")
	}
	u, err := s.users.FindByExternalID(ctx, subject)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	return u, err
}

// ensureMovie returns the stored movie, creating it from fb or the catalog
// on first reference. The catalog is consulted before anything is written.
func (s *Service) ensureMovie(ctx context.Context, externalID int, fb *MovieFallback) (*Movie, error) {
	key := strconv.Itoa(externalID)
	m, err := s.store.FindMovie(ctx, key)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrMovieNotFound) {
		return nil, err
	}

	if fb != nil && strings.TrimSpace(fb.Title) != "" {
		title := strings.TrimSpace(fb.Title)
		m = &Movie{
			Title:       title,
			Slug:        slug.Make(title),
			Overview:    fb.Overview,
			PosterPath:  fb.PosterPath,
			ReleaseDate: fb.ReleaseDate,
		}
	} else {
		if s.source == nil {
			return nil, errors.New("no movie source configured")
		}
		m, err = s.source.FetchMovie(ctx, externalID)
		if err != nil {
			return nil, err
		}
	}
	m.ExternalID = key

	stored, err := s.store.EnsureMovie(ctx, m)
	if err != nil {
		return nil, err
	}
	s.log.Debug("movie cached", "external_id", key, "id", stored.ID)
	return stored, nil
}

// ImportMovie caches a catalog movie locally without touching any user data.
// It reports whether the movie was already stored.
func (s *Service) ImportMovie(ctx context.Context, externalID int) (*Movie, bool, error) {
	if err := catalog.ValidateMovieID(externalID); err != nil {
		return nil, false, err
	}
	if m, err := s.store.FindMovie(ctx, strconv.Itoa(externalID)); err == nil {
		return m, true, nil
	} else if !errors.Is(err, ErrMovieNotFound) {
		return nil, false, err
	}
	m, err := s.ensureMovie(ctx, externalID, nil)
	return m, false, err
}

// lookupMovie finds an already stored movie without touching the catalog.
func (s *Service) lookupMovie(ctx context.Context, externalID int) (*Movie, error) {
	m, err := s.store.FindMovie(ctx, strconv.Itoa(externalID))
	if errors.Is(err, ErrMovieNotFound) {
		return nil, apperr.NotFound("Movie not found")
	}
	return m, err
}

// MarkResult is returned by MarkWatched.
type MarkResult struct {
	Watched              *WatchedMovie
	RemovedFromWatchlist bool
}

// MarkWatched records the movie as watched now. Marking again refreshes the
// timestamp. The movie leaves the user's watchlist in the same transaction.
func (s *Service) MarkWatched(ctx context.Context, subject string, movieID int, fb *MovieFallback) (*MarkResult, error) {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return nil, err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	movie, err := s.ensureMovie(ctx, movieID, fb)
	if err != nil {
		return nil, err
	}

	res := &MarkResult{}
	err = s.store.Transaction(ctx, func(tx *Store) error {
		w, err := tx.UpsertWatched(ctx, user.ID, movie.ID, s.now())
		if err != nil {
			return err
		}
		res.Watched = w
		res.RemovedFromWatchlist, err = tx.RemoveFromWatchlist(ctx, user.ID, movie.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("movie marked watched", "user_id", user.ID, "movie", movie.ExternalID, "removed_from_watchlist", res.RemovedFromWatchlist)
	return res, nil
}

// UnmarkWatched fails with NotFound when the movie was never watched.
func (s *Service) UnmarkWatched(ctx context.Context, subject string, movieID int) error {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return err
	}
	movie, err := s.lookupMovie(ctx, movieID)
	if err != nil {
		return err
	}

	n, err := s.store.DeleteWatched(ctx, user.ID, movie.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Movie is not in the watched list")
	}
	return nil
}

type WatchedStatus struct {
	IsWatched bool       `json:"isWatched"`
	WatchedAt *time.Time `json:"watchedAt"`
}

func (s *Service) WatchedStatus(ctx context.Context, subject string, movieID int) (WatchedStatus, error) {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return WatchedStatus{}, err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return WatchedStatus{}, err
	}
	movie, err := s.store.FindMovie(ctx, strconv.Itoa(movieID))
	if errors.Is(err, ErrMovieNotFound) {
		return WatchedStatus{}, nil
	}
	if err != nil {
		return WatchedStatus{}, err
	}

	w, err := s.store.GetWatched(ctx, user.ID, movie.ID)
	if errors.Is(err, ErrNotWatched) {
		return WatchedStatus{}, nil
	}
	if err != nil {
		return WatchedStatus{}, err
	}
	at := w.WatchedAt
	return WatchedStatus{IsWatched: true, WatchedAt: &at}, nil
}

func (s *Service) ListWatched(ctx context.Context, subject string, p Pagination) (*Page[WatchedMovie], error) {
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListWatched(ctx, user.ID, p.Offset(), p.Limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, p, total), nil
}

// AddToWatchlist is idempotent. It reports whether the movie was newly added.
func (s *Service) AddToWatchlist(ctx context.Context, subject string, movieID int, fb *MovieFallback) (*Movie, bool, error) {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return nil, false, err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, false, err
	}
	movie, err := s.ensureMovie(ctx, movieID, fb)
	if err != nil {
		return nil, false, err
	}

	added, err := s.store.AddToWatchlist(ctx, user.ID, movie.ID, s.now())
	if err != nil {
		return nil, false, err
	}
	return movie, added, nil
}

// RemoveFromWatchlist fails only for a movie that was never stored. Removing a
// movie that is not on the list succeeds.
func (s *Service) RemoveFromWatchlist(ctx context.Context, subject string, movieID int) error {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return err
	}
	movie, err := s.lookupMovie(ctx, movieID)
	if err != nil {
		return err
	}
	_, err = s.store.RemoveFromWatchlist(ctx, user.ID, movie.ID)
	return err
}

func (s *Service) InWatchlist(ctx context.Context, subject string, movieID int) (bool, error) {
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return false, err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return false, err
	}
	movie, err := s.store.FindMovie(ctx, strconv.Itoa(movieID))
	if errors.Is(err, ErrMovieNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.store.InWatchlist(ctx, user.ID, movie.ID)
}

func (s *Service) ListWatchlist(ctx context.Context, subject string, p Pagination) (*Page[WatchlistEntry], error) {
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListWatchlist(ctx, user.ID, p.Offset(), p.Limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, p, total), nil
}

// ValidateScore accepts 1 to 5 in half-star steps.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < MinScore || score > MaxScore || math.Mod(score, ScoreStep) != 0 {
		return apperr.Validation("Score must be between 1 and 5 in steps of 0.5")
	}
	return nil
}

// SubmitRating creates the caller's rating for the movie or replaces its score
// and review. A blank review is stored as null.
func (s *Service) SubmitRating(ctx context.Context, subject string, movieID int, score float64, review string) (*Rating, error) {
	if err := ValidateScore(score); err != nil {
		return nil, err
	}
	if err := catalog.ValidateMovieID(movieID); err != nil {
		return nil, err
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	movie, err := s.ensureMovie(ctx, movieID, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Rating{
		UserID:    user.ID,
		MovieID:   movie.ID,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if text := strings.TrimSpace(review); text != "" {
		r.Review = &text
	}
	stored, err := s.store.UpsertRating(ctx, r)
	if err != nil {
		return nil, err
	}
	s.log.Info("rating saved", "user_id", user.ID, "movie", movie.ExternalID, "score", score)
	return stored, nil
}

// DeleteRating removes one of the caller's ratings.
func (s *Service) DeleteRating(ctx context.Context, subject, ratingID string) error {
	ratingID = strings.TrimSpace(ratingID)
	if ratingID == "" {
		return apperr.Validation("reviewId is required")
	}
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return err
	}

	r, err := s.store.GetRating(ctx, ratingID)
	if errors.Is(err, ErrRatingNotFound) {
		return apperr.NotFound("Review not found")
	}
	if err != nil {
		return err
	}
	if r.UserID != user.ID {
		return apperr.Forbidden("Unauthorized to delete this review")
	}

	err = s.store.DeleteRating(ctx, ratingID)
	if errors.Is(err, ErrRatingNotFound) {
		return apperr.NotFound("Review not found")
	}
	return err
}

// RatingFilter selects ratings by catalog movie id and/or author external id.
// With neither set, the caller's own ratings are listed.
type RatingFilter struct {
	MovieRef string
	UserRef  string
}

// ListRatings returns an empty page when a filter names an unknown movie or user.
// The movie filter is a catalog id, so "042" and "42" select the same movie.
func (s *Service) ListRatings(ctx context.Context, subject string, f RatingFilter, p Pagination) (*Page[Rating], error) {
	var q RatingQuery
	empty := newPage([]Rating{}, p, 0)

	if ref := strings.TrimSpace(f.MovieRef); ref != "" {
		id, err := strconv.Atoi(ref)
		if err != nil {
			return empty, nil
		}
		m, err := s.store.FindMovie(ctx, strconv.Itoa(id))
		if errors.Is(err, ErrMovieNotFound) {
			return empty, nil
		}
		if err != nil {
			return nil, err
		}
		q.MovieID = &m.ID
	}

	if ref := strings.TrimSpace(f.UserRef); ref != "" {
		u, err := s.users.FindByExternalID(ctx, ref)
		if errors.Is(err, users.ErrUserNotFound) {
			return empty, nil
		}
		if err != nil {
			return nil, err
		}
		q.UserID = &u.ID
	} else if q.MovieID == nil {
		u, err := s.resolveUser(ctx, subject)
		if err != nil {
			return nil, err
		}
		q.UserID = &u.ID
	}

	items, total, err := s.store.ListRatings(ctx, q, p.Offset(), p.Limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, p, total), nil
}

func (s *Service) Stats(ctx context.Context, subject string) (Stats, error) {
	user, err := s.resolveUser(ctx, subject)
	if err != nil {
		return Stats{}, err
	}
	return s.store.Counts(ctx, user.ID)
}
