package movies

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/catalog"
)

// CatalogClient is the part of the catalog client used to materialize movies.
type CatalogClient interface {
	GetMovie(ctx context.Context, id int) (*catalog.Movie, error)
	PosterURL(path string) string
}

// MovieFetcher turns catalog entries into unsaved Movie rows.
type MovieFetcher struct {
	client CatalogClient
}

func NewMovieFetcher(client CatalogClient) *MovieFetcher {
	return &MovieFetcher{client: client}
}

// FetchMovie errors are already classified by the catalog client. An entry
// without a title is treated as an upstream failure so it is never stored.
func (f *MovieFetcher) FetchMovie(ctx context.Context, externalID int) (*Movie, error) {
	details, err := f.client.GetMovie(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if details == nil || strings.TrimSpace(details.Title) == "" {
		return nil, apperr.Upstream("Failed to fetch movie details", fmt.Errorf("incomplete catalog entry %d", externalID))
	}
	return f.convertToMovie(externalID, details), nil
}

func (f *MovieFetcher) convertToMovie(externalID int, details *catalog.Movie) *Movie {
	releaseDate := details.ReleaseDate
	if releaseDate == "" {
		releaseDate = details.Year.String()
	}
	return &Movie{
		ExternalID:  strconv.Itoa(externalID),
		Title:       details.Title,
		Slug:        slug.Make(details.Title),
		Overview:    details.Description,
		PosterPath:  f.client.PosterURL(details.Poster),
		ReleaseDate: releaseDate,
	}
}
