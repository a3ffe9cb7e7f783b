package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/config"
	"github.com/nnh1125/jumboboxd/internal/logging"
)

var titles = map[int]string{
	0:  "The Shawshank Redemption",
	1:  "The Godfather",
	13: "Forrest Gump",
	30: "The Dark Knight Rises",
	42: "Inception",
	60: "The Dark Knight",
}

// newCatalogServer serves the 250-movie catalog; ids listed in broken fail with 500.
// Id 200 is missing and ids 201 to 203 answer 200 without a usable title.
func newCatalogServer(t *testing.T, broken map[int]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/list":
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if broken[-page] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			movies := make([]Movie, 0, PageSize)
			for id := (page - 1) * PageSize; id < page*PageSize; id++ {
				movies = append(movies, movie(id))
			}
			_ = json.NewEncoder(w).Encode(movies)
		case "/api/movie":
			id, _ := strconv.Atoi(r.URL.Query().Get("id"))
			if broken[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			switch id {
			case 200:
				w.WriteHeader(http.StatusNotFound)
				return
			case 201:
				_, _ = fmt.Fprint(w, `null`)
				return
			case 202:
				_, _ = fmt.Fprint(w, `{}`)
				return
			case 203:
				_, _ = fmt.Fprintf(w, `{"id": %d, "title": "  ", "poster": "/p.jpg"}`, id)
				return
			}
			_, _ = fmt.Fprintf(w, `{"id": %d, "title": %q, "description": "d", "poster": "/p/%d.jpg", "year": "1994", "genres": ["Drama"]}`, id, movie(id).Title, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func movie(id int) Movie {
	title, ok := titles[id]
	if !ok {
		title = fmt.Sprintf("Movie %d", id)
	}
	return Movie{ID: id, Title: title, Year: Year(1950 + id%70)}
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.CatalogConfig{BaseURL: baseURL + "/api/", TimeoutSeconds: 5}, logging.Discard())
}

func TestGetMovie(t *testing.T) {
	srv, _ := newCatalogServer(t, map[int]bool{7: true})
	c := newTestClient(srv.URL)
	ctx := context.Background()

	m, err := c.GetMovie(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, "Forrest Gump", m.Title)
	assert.Equal(t, Year(1994), m.Year)
	assert.Equal(t, []string{"Drama"}, m.Genres)

	_, err = c.GetMovie(ctx, 200)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = c.GetMovie(ctx, 7)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, "Failed to fetch movie details", err.(*apperr.Error).Message)

	for _, id := range []int{-1, 250} {
		_, err = c.GetMovie(ctx, id)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "id %d", id)
	}
}

func TestGetMovieWithoutTitle(t *testing.T) {
	srv, _ := newCatalogServer(t, nil)
	c := newTestClient(srv.URL)

	for _, id := range []int{201, 202, 203} {
		m, err := c.GetMovie(context.Background(), id)
		assert.Nil(t, m, "id %d", id)
		require.Error(t, err, "id %d", id)
		assert.True(t, apperr.Is(err, apperr.KindUpstream), "id %d", id)
		assert.Equal(t, "Failed to fetch movie details", err.(*apperr.Error).Message)
	}
}

func TestListMovies(t *testing.T) {
	srv, requests := newCatalogServer(t, map[int]bool{-3: true})
	c := newTestClient(srv.URL)
	ctx := context.Background()

	movies, err := c.ListMovies(ctx, 2)
	require.NoError(t, err)
	require.Len(t, movies, PageSize)
	assert.Equal(t, 25, movies[0].ID)

	_, err = c.ListMovies(ctx, 3)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	before := requests.Load()
	for _, page := range []int{0, 11} {
		_, err = c.ListMovies(ctx, page)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "page %d", page)
	}
	assert.Equal(t, before, requests.Load(), "invalid pages never reach the catalog")
}

func TestSearch(t *testing.T) {
	srv, requests := newCatalogServer(t, nil)
	c := newTestClient(srv.URL)
	ctx := context.Background()

	results, err := c.Search(ctx, "dark KNIGHT", MaxPage)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "The Dark Knight Rises", results[0].Title, "catalog order is kept")
	assert.Equal(t, "The Dark Knight", results[1].Title)
	assert.Equal(t, int32(MaxPage), requests.Load())

	results, err = c.Search(ctx, "inception", 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = c.Search(ctx, "  ", MaxPage)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSearchUpstreamFailure(t *testing.T) {
	srv, _ := newCatalogServer(t, map[int]bool{-4: true})
	c := newTestClient(srv.URL)

	_, err := c.Search(context.Background(), "godfather", MaxPage)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestPosterURL(t *testing.T) {
	c := newTestClient("https://catalog.test")
	assert.Equal(t, "", c.PosterURL(""))
	assert.Equal(t, "https://img.test/a.jpg", c.PosterURL("https://img.test/a.jpg"))
	assert.Equal(t, "https://catalog.test/api/p/1.jpg", c.PosterURL("/p/1.jpg"))
}

func TestParseMovieID(t *testing.T) {
	id, err := ParseMovieID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, raw := range []string{"", "abc", "250", "-1"} {
		_, err := ParseMovieID(raw)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "raw %q", raw)
	}
}

func TestYearUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Year
	}{
		{`1994`, 1994},
		{`"1994"`, 1994},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var y Year
		require.NoError(t, json.Unmarshal([]byte(tt.in), &y), tt.in)
		assert.Equal(t, tt.want, y, tt.in)
	}

	var y Year
	assert.Error(t, json.Unmarshal([]byte(`"nineteen"`), &y))
	assert.Equal(t, "", Year(0).String())
	assert.Equal(t, "2010", Year(2010).String())
}
