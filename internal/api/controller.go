package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/catalog"
)

// Catalog is the read side of the external movie catalog.
type Catalog interface {
	ListMovies(ctx context.Context, page int) ([]catalog.Movie, error)
	GetMovie(ctx context.Context, id int) (*catalog.Movie, error)
	Search(ctx context.Context, query string, maxPages int) ([]catalog.Movie, error)
}

// CatalogController proxies public catalog reads.
type CatalogController struct {
	catalog Catalog
	log     *log.Logger
}

func NewCatalogController(c Catalog, logger *log.Logger) *CatalogController {
	return &CatalogController{catalog: c, log: logger}
}

// ListMoviesHandler returns one catalog page as a bare array.
func (ctl *CatalogController) ListMoviesHandler(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		apperr.Respond(c, ctl.log, apperr.Validation("Page must be between %d and %d", catalog.MinPage, catalog.MaxPage))
		return
	}

	movies, err := ctl.catalog.ListMovies(c.Request.Context(), page)
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, movies)
}

func (ctl *CatalogController) GetMovieHandler(c *gin.Context) {
	id, err := catalog.ParseMovieID(c.Query("id"))
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}

	movie, err := ctl.catalog.GetMovie(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, movie)
}

// SearchHandler matches titles across the first `pages` catalog pages.
func (ctl *CatalogController) SearchHandler(c *gin.Context) {
	query := c.Query("q")
	pages := catalog.MaxPage
	if raw := c.Query("pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || catalog.ValidatePage(n) != nil {
			apperr.Respond(c, ctl.log, apperr.Validation("pages must be between %d and %d", catalog.MinPage, catalog.MaxPage))
			return
		}
		pages = n
	}

	results, err := ctl.catalog.Search(c.Request.Context(), query, pages)
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, catalog.SearchResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}
