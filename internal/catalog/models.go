package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Movie is a catalog entry as served by the external movie API.
type Movie struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Year        Year     `json:"year,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Director    string   `json:"director,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// Year accepts both 1994 and "1994" on the wire and always encodes as a number.
type Year int

func (y *Year) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*y = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*y = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*y = Year(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*y = Year(n)
	return nil
}

func (y Year) String() string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(int(y))
}

// SearchResponse is returned by Search.
type SearchResponse struct {
	Query   string  `json:"query"`
	Results []Movie `json:"results"`
	Total   int     `json:"total"`
}
