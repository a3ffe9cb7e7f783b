package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/config"
)

var ErrMovieNotFound = errors.New("catalog: movie not found")

const searchConcurrency = 4

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *log.Logger
}

func NewClient(cfg config.CatalogConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     logger,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	c.log.Debug("catalog request", "url", fullURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrMovieNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("catalog error response", "status", resp.StatusCode, "body", truncate(body, 256))
		return fmt.Errorf("catalog api error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	c.log.Debug("catalog response", "bytes", len(body))
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// GetMovie returns the catalog entry with the given id.
func (c *Client) GetMovie(ctx context.Context, id int) (*Movie, error) {
	if err := ValidateMovieID(id); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("id", strconv.Itoa(id))

	var movie Movie
	if err := c.get(ctx, "/movie", params, &movie); err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return nil, apperr.NotFound("Movie not found")
		}
		return nil, apperr.Upstream("Failed to fetch movie details", err)
	}
	if strings.TrimSpace(movie.Title) == "" {
		return nil, apperr.Upstream("Failed to fetch movie details", fmt.Errorf("catalog returned movie %d without a title", id))
	}
	return &movie, nil
}

// ListMovies returns one catalog page.
func (c *Client) ListMovies(ctx context.Context, page int) ([]Movie, error) {
	if err := ValidatePage(page); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var movies []Movie
	if err := c.get(ctx, "/list", params, &movies); err != nil {
		return nil, apperr.Upstream("Failed to fetch movies", err)
	}
	return movies, nil
}

// Search scans the first maxPages catalog pages and returns the movies whose
// title contains query, case-insensitively, in catalog order.
func (c *Client) Search(ctx context.Context, query string, maxPages int) ([]Movie, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, apperr.Validation("query parameter 'q' required")
	}
	if maxPages < MinPage || maxPages > MaxPage {
		maxPages = MaxPage
	}

	pages := make([][]Movie, maxPages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i := range pages {
		g.Go(func() error {
			movies, err := c.ListMovies(gctx, i+1)
			if err != nil {
				return err
			}
			pages[i] = movies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := []Movie{}
	for _, page := range pages {
		for _, m := range page {
			if strings.Contains(strings.ToLower(m.Title), needle) {
				results = append(results, m)
			}
		}
	}
	return results, nil
}

// PosterURL resolves a poster reference against the catalog host when it is relative.
func (c *Client) PosterURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
