package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nnh1125/jumboboxd/internal/config"
)

// HTTPDirectory looks users up through the identity provider's admin API.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDirectory authenticates with the client-credentials flow when a token
// URL is configured, and with the static secret key otherwise.
func NewHTTPDirectory(ctx context.Context, cfg config.DirectoryConfig) (*HTTPDirectory, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("directory base url is required")
	}

	base := &http.Client{Timeout: 10 * time.Second}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(ctx)
	case cfg.SecretKey != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.SecretKey,
			TokenType:   "Bearer",
		}))
	default:
		return nil, errors.New("directory needs either a secret key or client credentials")
	}

	return &HTTPDirectory{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
	}, nil
}

type directoryEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type directoryUser struct {
	ID                    string           `json:"id"`
	Username              *string          `json:"username"`
	FirstName             *string          `json:"first_name"`
	LastName              *string          `json:"last_name"`
	PrimaryEmailAddressID *string          `json:"primary_email_address_id"`
	EmailAddresses        []directoryEmail `json:"email_addresses"`
}

func (u directoryUser) profile() *Profile {
	return &Profile{
		ExternalID:  u.ID,
		Email:       u.primaryEmail(),
		Username:    deref(u.Username),
		DisplayName: strings.TrimSpace(deref(u.FirstName) + " " + deref(u.LastName)),
	}
}

// primaryEmail prefers the address marked primary, then the first one.
// Some sign-in methods carry no address at all.
func (u directoryUser) primaryEmail() string {
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e.ID == *u.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (d *HTTPDirectory) LookupUser(ctx context.Context, externalID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/users/%s", d.baseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrIdentityNotFound
	default:
		return nil, fmt.Errorf("directory api error: status %d", resp.StatusCode)
	}

	var u directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrIdentityNotFound
	}
	return u.profile(), nil
}
