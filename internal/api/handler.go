// Package api assembles the HTTP surface of the service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
	"github.com/nnh1125/jumboboxd/internal/logging"
	"github.com/nnh1125/jumboboxd/internal/movies"
	"github.com/nnh1125/jumboboxd/internal/users"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Catalog    *CatalogController
	Users      *users.Controller
	Movies     *movies.Controller
	Verifier   auth.TokenVerifier
	CookieName string
	// Ping checks the database for /health. Nil skips the check.
	Ping   func(ctx context.Context) error
	Logger *log.Logger
}

// NewRouter builds the gin engine with the full route table.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(logging.Gin(d.Logger), apperr.Recovery(d.Logger))

	r.GET("/health", healthHandler(d.Ping))

	api := r.Group("/api")

	pub := api.Group("/movies")
	pub.GET("/list", d.Catalog.ListMoviesHandler)
	pub.GET("/detail", d.Catalog.GetMovieHandler)
	pub.GET("/search", d.Catalog.SearchHandler)

	authed := api.Group("", auth.RequireAuth(d.Verifier, d.CookieName, d.Logger))

	m := authed.Group("/movies")
	m.GET("/check-watched", d.Movies.CheckWatchedHandler)
	m.GET("/watched", d.Movies.ListWatchedHandler)
	m.POST("/watched", d.Movies.MarkWatchedHandler)
	m.DELETE("/watched", d.Movies.UnmarkWatchedHandler)
	m.GET("/watchlist", d.Movies.ListWatchlistHandler)
	m.POST("/watchlist", d.Movies.AddToWatchlistHandler)
	m.DELETE("/watchlist", d.Movies.RemoveFromWatchlistHandler)
	m.GET("/watchlist/status", d.Movies.WatchlistStatusHandler)
	m.GET("/reviews", d.Movies.ListReviewsHandler)
	m.POST("/reviews", d.Movies.SubmitReviewHandler)
	m.DELETE("/reviews", d.Movies.DeleteReviewHandler)

	authed.POST("/users", d.Users.SyncUserHandler)
	authed.GET("/me", d.Users.MeHandler)
	authed.GET("/me/stats", d.Movies.StatsHandler)

	r.NoRoute(func(c *gin.Context) {
		apperr.Respond(c, d.Logger, apperr.NotFound("route not found"))
	})
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
