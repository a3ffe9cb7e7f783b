package catalog

import (
	"strconv"
	"strings"

	"github.com/nnh1125/jumboboxd/internal/apperr"
)

// The catalog is a fixed set of 250 movies served 25 per page.
const (
	MinMovieID = 0
	MaxMovieID = 249
	MinPage    = 1
	MaxPage    = 10
	PageSize   = 25
)

// ValidateMovieID checks id against the catalog's id range.
func ValidateMovieID(id int) error {
	if id < MinMovieID || id > MaxMovieID {
		return apperr.Validation("Movie ID must be between %d and %d", MinMovieID, MaxMovieID)
	}
	return nil
}

// ParseMovieID parses and validates the string form of a catalog id.
func ParseMovieID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.Validation("Movie ID is required")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Movie ID must be between %d and %d", MinMovieID, MaxMovieID)
	}
	return id, ValidateMovieID(id)
}

func ValidatePage(page int) error {
	if page < MinPage || page > MaxPage {
		return apperr.Validation("Page must be between %d and %d", MinPage, MaxPage)
	}
	return nil
}
