package movies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
	"github.com/nnh1125/jumboboxd/internal/catalog"
	"github.com/nnh1125/jumboboxd/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type subjectVerifier struct{}

func (subjectVerifier) Verify(_ context.Context, tok string) (*auth.Identity, error) {
	return &auth.Identity{Subject: tok}, nil
}

func newTestRouter(f *fixture) *gin.Engine {
	ctl := NewController(f.svc, logging.Discard())
	r := gin.New()
	g := r.Group("/api", auth.RequireAuth(subjectVerifier{}, "__session", logging.Discard()))
	g.GET("/movies/check-watched", ctl.CheckWatchedHandler)
	g.GET("/movies/watched", ctl.ListWatchedHandler)
	g.POST("/movies/watched", ctl.MarkWatchedHandler)
	g.DELETE("/movies/watched", ctl.UnmarkWatchedHandler)
	g.GET("/movies/watchlist", ctl.ListWatchlistHandler)
	g.POST("/movies/watchlist", ctl.AddToWatchlistHandler)
	g.DELETE("/movies/watchlist", ctl.RemoveFromWatchlistHandler)
	g.GET("/movies/watchlist/status", ctl.WatchlistStatusHandler)
	g.GET("/movies/reviews", ctl.ListReviewsHandler)
	g.POST("/movies/reviews", ctl.SubmitReviewHandler)
	g.DELETE("/movies/reviews", ctl.DeleteReviewHandler)
	g.GET("/me/stats", ctl.StatsHandler)
	return r
}

type client struct {
	t *testing.T
	r *gin.Engine
}

func (c client) do(method, path, token, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestWatchedEndpoints(t *testing.T) {
	f := newFixture(t)
	c := client{t: t, r: newTestRouter(f)}

	w := c.do(http.MethodGet, "/api/movies/watched", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/movies/watched", "user_a", `{"id": 42, "title": "Inception", "releaseDate": "2010"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mark := decode[struct {
		Message      string               `json:"message"`
		WatchedMovie WatchedMovieResponse `json:"watchedMovie"`
		Removed      bool                 `json:"removedFromWatchlist"`
	}](t, w)
	assert.Equal(t, "Movie marked as watched", mark.Message)
	assert.Equal(t, "42", mark.WatchedMovie.Movie.ExternalID)
	assert.False(t, mark.Removed)

	w = c.do(http.MethodGet, "/api/movies/check-watched?id=42", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[WatchedStatus](t, w)
	assert.True(t, status.IsWatched)
	assert.NotNil(t, status.WatchedAt)

	w = c.do(http.MethodGet, "/api/movies/watched?page=1&limit=20", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		WatchedMovies []WatchedMovieResponse `json:"watchedMovies"`
		Pagination    PaginationResponse     `json:"pagination"`
	}](t, w)
	require.Len(t, list.WatchedMovies, 1)
	assert.Equal(t, "Inception", list.WatchedMovies[0].Movie.Title)
	assert.Equal(t, PaginationResponse{Page: 1, Limit: 20, Total: 1, TotalPages: 1}, list.Pagination)

	w = c.do(http.MethodDelete, "/api/movies/watched", "user_a", `{"id": "42"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodDelete, "/api/movies/watched?id=42", "user_a", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/movies/watched", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"watchedMovies": [], "pagination": {"page": 1, "limit": 20, "total": 0, "totalPages": 0}}`, w.Body.String())
}

func TestWatchedEndpointValidation(t *testing.T) {
	f := newFixture(t)
	c := client{t: t, r: newTestRouter(f)}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"MissingID", http.MethodPost, "/api/movies/watched", `{"title": "x"}`, http.StatusBadRequest},
		{"IDTooLarge", http.MethodPost, "/api/movies/watched", `{"id": 250}`, http.StatusBadRequest},
		{"BadJSON", http.MethodPost, "/api/movies/watched", `{"id":`, http.StatusBadRequest},
		{"CheckWithoutID", http.MethodGet, "/api/movies/check-watched", "", http.StatusBadRequest},
		{"CheckNonNumeric", http.MethodGet, "/api/movies/check-watched?id=abc", "", http.StatusBadRequest},
		{"PageZero", http.MethodGet, "/api/movies/watched?page=0", "", http.StatusBadRequest},
		{"LimitTooLarge", http.MethodGet, "/api/movies/watched?limit=101", "", http.StatusBadRequest},
		{"UnknownMovie", http.MethodDelete, "/api/movies/watched?id=120", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.do(tt.method, tt.path, "user_a", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := c.do(http.MethodGet, "/api/movies/watched", "user_unsynced", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "User not found"}`, w.Body.String())
}

func TestWatchlistEndpoints(t *testing.T) {
	f := newFixture(t)
	c := client{t: t, r: newTestRouter(f)}

	w := c.do(http.MethodPost, "/api/movies/watchlist", "user_a", `{"movieId": 1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"added":true`)

	w = c.do(http.MethodPost, "/api/movies/watchlist", "user_a", `{"movieId": "77", "title": "Heat", "year": 1995, "posterPath": "/heat.jpg"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/api/movies/watchlist", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Movies     []WatchlistMovieResponse `json:"movies"`
		Pagination PaginationResponse       `json:"pagination"`
	}](t, w)
	require.Len(t, list.Movies, 2)
	assert.Equal(t, "77", list.Movies[0].ID)
	require.NotNil(t, list.Movies[0].Year)
	assert.Equal(t, 1995, *list.Movies[0].Year)
	assert.Equal(t, "/heat.jpg", list.Movies[0].Poster)
	assert.Equal(t, 12, list.Pagination.Limit)

	w = c.do(http.MethodGet, "/api/movies/watchlist/status?id=77", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"inWatchlist": true}`, w.Body.String())

	w = c.do(http.MethodDelete, "/api/movies/watchlist", "user_a", `{"movieId": 77}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = c.do(http.MethodDelete, "/api/movies/watchlist", "user_a", `{"movieId": 77}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = c.do(http.MethodDelete, "/api/movies/watchlist", "user_a", `{"movieId": 200}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/movies/watchlist/status?id=77", "user_a", "")
	assert.JSONEq(t, `{"inWatchlist": false}`, w.Body.String())
}

func TestReviewEndpoints(t *testing.T) {
	f := newFixture(t)
	c := client{t: t, r: newTestRouter(f)}

	w := c.do(http.MethodPost, "/api/movies/reviews", "user_a", `{"movieId": 2, "score": 6}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = c.do(http.MethodPost, "/api/movies/reviews", "user_a", `{"movieId": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPost, "/api/movies/reviews", "user_a", `{"movieId": 2, "score": 4.5, "review": "an offer"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	review := decode[ReviewResponse](t, w)
	assert.Equal(t, 4.5, review.Score)
	assert.Equal(t, "user_a", review.User.ID)
	assert.Equal(t, "The Godfather", review.Movie.Title)
	assert.NotContains(t, w.Body.String(), "@example.com")

	w = c.do(http.MethodGet, "/api/movies/reviews?movieId=2", "user_b", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "@example.com")
	list := decode[struct {
		Reviews    []ReviewResponse   `json:"reviews"`
		Pagination PaginationResponse `json:"pagination"`
	}](t, w)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, 10, list.Pagination.Limit)

	w = c.do(http.MethodGet, "/api/movies/reviews?movieId=9999", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reviews": [], "pagination": {"page": 1, "limit": 10, "total": 0, "totalPages": 0}}`, w.Body.String())

	w = c.do(http.MethodDelete, "/api/movies/reviews?reviewId="+review.ID, "user_b", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = c.do(http.MethodDelete, "/api/movies/reviews", "user_a", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = c.do(http.MethodDelete, "/api/movies/reviews?reviewId=abc", "user_a", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = c.do(http.MethodDelete, "/api/movies/reviews?reviewId="+review.ID, "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())
	w = c.do(http.MethodDelete, "/api/movies/reviews?reviewId="+review.ID, "user_a", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	c := client{t: t, r: newTestRouter(f)}

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/movies/watched", "user_a", `{"id": 1}`).Code)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/movies/watchlist", "user_a", `{"movieId": 2}`).Code)

	w := c.do(http.MethodGet, "/api/me/stats", "user_a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"watched": 1, "watchlist": 1, "ratings": 0}`, w.Body.String())
}

func TestMovieRefUnmarshal(t *testing.T) {
	var body struct {
		A *MovieRef `json:"a"`
		B *MovieRef `json:"b"`
		C *MovieRef `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": " 34 "}`), &body))
	require.NotNil(t, body.A)
	require.NotNil(t, body.B)
	assert.Equal(t, MovieRef(12), *body.A)
	assert.Equal(t, MovieRef(34), *body.B)
	assert.Nil(t, body.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "twelve"}`), &body))
}

func TestReleaseYear(t *testing.T) {
	y := releaseYear("2010-07-16")
	require.NotNil(t, y)
	assert.Equal(t, 2010, *y)
	assert.Nil(t, releaseYear(""))
	assert.Nil(t, releaseYear("n/a"))
}

type fakeCatalogClient struct {
	movie *catalog.Movie
	err   error
}

func (f fakeCatalogClient) GetMovie(context.Context, int) (*catalog.Movie, error) {
	return f.movie, f.err
}

func (fakeCatalogClient) PosterURL(path string) string {
	return "https://catalog.test/" + strings.TrimLeft(path, "/")
}

func TestMovieFetcher(t *testing.T) {
	fetcher := NewMovieFetcher(fakeCatalogClient{movie: &catalog.Movie{
		ID:          13,
		Title:       "Forrest Gump",
		Description: "Life is like a box of chocolates.",
		Poster:      "/posters/13.jpg",
		Year:        1994,
	}})

	m, err := fetcher.FetchMovie(context.Background(), 13)
	require.NoError(t, err)
	assert.Equal(t, "13", m.ExternalID)
	assert.Equal(t, "forrest-gump", m.Slug)
	assert.Equal(t, "https://catalog.test/posters/13.jpg", m.PosterPath)
	assert.Equal(t, "1994", m.ReleaseDate)
	assert.Equal(t, "Life is like a box of chocolates.", m.Overview)
}

func TestMovieFetcherRejectsUntitledEntry(t *testing.T) {
	for _, movie := range []*catalog.Movie{nil, {ID: 7}, {ID: 7, Title: "   "}} {
		fetcher := NewMovieFetcher(fakeCatalogClient{movie: movie})
		m, err := fetcher.FetchMovie(context.Background(), 7)
		assert.Nil(t, m)
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	}
}
