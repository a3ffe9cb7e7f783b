package movies

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
	"github.com/nnh1125/jumboboxd/internal/catalog"
)

// MovieRef is a catalog id sent either as a JSON number or a string.
type MovieRef int

func (r *MovieRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*r = MovieRef(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = MovieRef(n)
	return nil
}

type markWatchedDTO struct {
	ID          *MovieRef `json:"id"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview"`
	PosterPath  string    `json:"posterPath"`
	ReleaseDate string    `json:"releaseDate"`
}

type watchlistDTO struct {
	MovieID    *MovieRef    `json:"movieId"`
	Title      string       `json:"title"`
	Overview   string       `json:"overview"`
	PosterPath string       `json:"posterPath"`
	Year       catalog.Year `json:"year"`
}

type ratingDTO struct {
	MovieID *MovieRef `json:"movieId"`
	Score   *float64  `json:"score"`
	Review  string    `json:"review"`
}

type MovieResponse struct {
	ID          uint   `json:"id"`
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	Slug        string `json:"slug,omitempty"`
	Overview    string `json:"overview,omitempty"`
	PosterPath  string `json:"posterPath,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

func toMovieResponse(m Movie) MovieResponse {
	return MovieResponse{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		Slug:        m.Slug,
		Overview:    m.Overview,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
	}
}

type WatchedMovieResponse struct {
	ID        uint          `json:"id"`
	WatchedAt time.Time     `json:"watchedAt"`
	Movie     MovieResponse `json:"movie"`
}

func toWatchedResponse(w WatchedMovie) WatchedMovieResponse {
	return WatchedMovieResponse{ID: w.ID, WatchedAt: w.WatchedAt, Movie: toMovieResponse(w.Movie)}
}

// WatchlistMovieResponse keys movies by catalog id, the shape the UI renders.
type WatchlistMovieResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Poster      string    `json:"poster,omitempty"`
	Year        *int      `json:"year"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

func toWatchlistResponse(e WatchlistEntry) WatchlistMovieResponse {
	return WatchlistMovieResponse{
		ID:          e.Movie.ExternalID,
		Title:       e.Movie.Title,
		Poster:      e.Movie.PosterPath,
		Year:        releaseYear(e.Movie.ReleaseDate),
		Description: e.Movie.Overview,
		AddedAt:     e.CreatedAt,
	}
}

// releaseYear reads the leading year of a free-form release date.
func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &y
}

type ReviewAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ReviewMovie struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Poster string `json:"poster,omitempty"`
}

type ReviewResponse struct {
	ID        string       `json:"id"`
	Score     float64      `json:"score"`
	Review    *string      `json:"review"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	User      ReviewAuthor `json:"user"`
	Movie     ReviewMovie  `json:"movie"`
}

func toReviewResponse(r Rating) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		Score:     r.Score,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		User:      ReviewAuthor{ID: r.User.ExternalID, Username: r.User.Username},
		Movie:     ReviewMovie{ID: r.Movie.ExternalID, Title: r.Movie.Title, Poster: r.Movie.PosterPath},
	}
}

type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func toPaginationResponse[T any](p *Page[T]) PaginationResponse {
	return PaginationResponse{
		Page:       p.Pagination.Page,
		Limit:      p.Pagination.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages(),
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

type Controller struct {
	svc *Service
	log *log.Logger
}

func NewController(svc *Service, logger *log.Logger) *Controller {
	return &Controller{svc: svc, log: logger}
}

func (ctl *Controller) fail(c *gin.Context, err error) {
	apperr.Respond(c, ctl.log, err)
}

func (ctl *Controller) subject(c *gin.Context) (string, bool) {
	sub, ok := auth.Subject(c)
	if !ok {
		ctl.fail(c, apperr.Unauthorized("unauthenticated"))
	}
	return sub, ok
}

// bindOptionalJSON decodes the body into dst and accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// movieID picks the id from the body, falling back to the named query parameter.
func movieID(ref *MovieRef, c *gin.Context, query string) (int, error) {
	if ref != nil {
		id := int(*ref)
		return id, catalog.ValidateMovieID(id)
	}
	return catalog.ParseMovieID(c.Query(query))
}

func (ctl *Controller) CheckWatchedHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	id, err := catalog.ParseMovieID(c.Query("id"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	status, err := ctl.svc.WatchedStatus(c.Request.Context(), sub, id)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (ctl *Controller) ListWatchedHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	p, err := ParsePagination(c.Query("page"), c.Query("limit"), DefaultWatchedLimit)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	page, err := ctl.svc.ListWatched(c.Request.Context(), sub, p)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"watchedMovies": mapSlice(page.Items, toWatchedResponse),
		"pagination":    toPaginationResponse(page),
	})
}

func (ctl *Controller) MarkWatchedHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	var body markWatchedDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		ctl.fail(c, err)
		return
	}
	id, err := movieID(body.ID, c, "id")
	if err != nil {
		ctl.fail(c, err)
		return
	}

	res, err := ctl.svc.MarkWatched(c.Request.Context(), sub, id, &MovieFallback{
		Title:       body.Title,
		Overview:    body.Overview,
		PosterPath:  body.PosterPath,
		ReleaseDate: body.ReleaseDate,
	})
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":              "Movie marked as watched",
		"watchedMovie":         toWatchedResponse(*res.Watched),
		"removedFromWatchlist": res.RemovedFromWatchlist,
	})
}

func (ctl *Controller) UnmarkWatchedHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	var body markWatchedDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		ctl.fail(c, err)
		return
	}
	id, err := movieID(body.ID, c, "id")
	if err != nil {
		ctl.fail(c, err)
		return
	}
	if err := ctl.svc.UnmarkWatched(c.Request.Context(), sub, id); err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Movie removed from watched list"})
}

func (ctl *Controller) ListWatchlistHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	p, err := ParsePagination(c.Query("page"), c.Query("limit"), DefaultWatchlistLimit)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	page, err := ctl.svc.ListWatchlist(c.Request.Context(), sub, p)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"movies":     mapSlice(page.Items, toWatchlistResponse),
		"pagination": toPaginationResponse(page),
	})
}

func (ctl *Controller) AddToWatchlistHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	var body watchlistDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		ctl.fail(c, err)
		return
	}
	id, err := movieID(body.MovieID, c, "movieId")
	if err != nil {
		ctl.fail(c, err)
		return
	}

	movie, added, err := ctl.svc.AddToWatchlist(c.Request.Context(), sub, id, &MovieFallback{
		Title:       body.Title,
		Overview:    body.Overview,
		PosterPath:  body.PosterPath,
		ReleaseDate: body.Year.String(),
	})
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "added": added, "movie": toMovieResponse(*movie)})
}

func (ctl *Controller) RemoveFromWatchlistHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	var body watchlistDTO
	if err := bindOptionalJSON(c, &body); err != nil {
		ctl.fail(c, err)
		return
	}
	id, err := movieID(body.MovieID, c, "movieId")
	if err != nil {
		ctl.fail(c, err)
		return
	}
	if err := ctl.svc.RemoveFromWatchlist(c.Request.Context(), sub, id); err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) WatchlistStatusHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	id, err := catalog.ParseMovieID(c.Query("id"))
	if err != nil {
		ctl.fail(c, err)
		return
	}
	in, err := ctl.svc.InWatchlist(c.Request.Context(), sub, id)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inWatchlist": in})
}

func (ctl *Controller) ListReviewsHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	p, err := ParsePagination(c.Query("page"), c.Query("limit"), DefaultReviewsLimit)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	filter := RatingFilter{MovieRef: c.Query("movieId"), UserRef: c.Query("userId")}
	page, err := ctl.svc.ListRatings(c.Request.Context(), sub, filter, p)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reviews":    mapSlice(page.Items, toReviewResponse),
		"pagination": toPaginationResponse(page),
	})
}

func (ctl *Controller) SubmitReviewHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	var body ratingDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		ctl.fail(c, apperr.Validation("invalid request body"))
		return
	}
	if body.MovieID == nil || body.Score == nil {
		ctl.fail(c, apperr.Validation("movieId and score are required"))
		return
	}

	r, err := ctl.svc.SubmitRating(c.Request.Context(), sub, int(*body.MovieID), *body.Score, body.Review)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReviewResponse(*r))
}

func (ctl *Controller) DeleteReviewHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	if err := ctl.svc.DeleteRating(c.Request.Context(), sub, c.Query("reviewId")); err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *Controller) StatsHandler(c *gin.Context) {
	sub, ok := ctl.subject(c)
	if !ok {
		return
	}
	st, err := ctl.svc.Stats(c.Request.Context(), sub)
	if err != nil {
		ctl.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
