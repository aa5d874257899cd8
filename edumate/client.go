// ABOUTME: Edumate API client for staff and student rosters
// ABOUTME: Authenticates with client credentials and follows paginated contact listings
package edumate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harperreed/patronsync/logging"
	"github.com/harperreed/patronsync/models"
	"github.com/harperreed/patronsync/session"
	"golang.org/x/oauth2"
)

const serviceName = "edumate"

// Roster endpoints. Staff come from the contacts endpoint so casual staff are
// included; students come from the LMS endpoint, which carries form names.
const (
	StaffPath   = "/contacts/contacts/current?contactType=staff"
	StudentPath = "/lms/students"
)

// Config holds Edumate connection settings.
type Config struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Client struct {
	cfg     Config
	session *session.Session
	http    *http.Client
	raw     *http.Client
}

// envelope is the wrapper every Edumate response uses.
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Next *string `json:"next"`
	} `json:"pagination"`
}

type tokenData struct {
	AccessToken  string      `json:"access_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
}

// NewClient creates an Edumate client with its own token session.
func NewClient(cfg Config) *Client {
	raw := &http.Client{Timeout: cfg.Timeout}
	c := &Client{cfg: cfg, raw: raw}
	c.session = session.New(serviceName, c.fetchToken)
	c.http = c.session.HTTPClient(raw)
	return c
}

// Authenticate acquires a token up front so credential problems surface
// before any roster is read.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.session.TokenContext(ctx)
	return err
}

// FetchContacts returns every current staff member followed by every
// student. Any failed page fails the whole listing.
func (c *Client) FetchContacts(ctx context.Context) ([]models.RawContact, error) {
	var all []models.RawContact
	for _, path := range []string{StaffPath, StudentPath} {
		contacts, err := c.fetchAll(ctx, path)
		if err != nil {
			return nil, err
		}
		all = append(all, contacts...)
	}
	return all, nil
}

func (c *Client) fetchAll(ctx context.Context, path string) ([]models.RawContact, error) {
	log := logging.FromContext(ctx)

	next, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var all []models.RawContact
	for page := 1; next != ""; page++ {
		env, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to get contacts from Edumate: %w", err)
		}

		var contacts []models.RawContact
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &contacts); err != nil {
				return nil, fmt.Errorf("failed to decode Edumate contacts page %d: %w", page, err)
			}
		}
		all = append(all, contacts...)
		log.Debug().Str("path", path).Int("page", page).Int("count", len(contacts)).Msg("Fetched Edumate page")

		next = ""
		if env.Pagination != nil && env.Pagination.Next != nil && *env.Pagination.Next != "" {
			if next, err = c.resolve(*env.Pagination.Next); err != nil {
				return nil, err
			}
		}
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, target string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeEnvelope(resp, "list contacts")
}

func (c *Client) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := decodeEnvelope(resp, "token")
	if err != nil {
		return nil, err
	}

	var data tokenData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  data.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: data.RefreshToken,
	}
	if secs, err := data.ExpiresIn.Int64(); err == nil && secs > 0 {
		token.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return token, nil
}

// resolve turns a relative path or pagination link into an absolute URL.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid Edumate URL %q: %w", c.cfg.BaseURL, err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid Edumate link %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return base.String() + strings.TrimLeft(ref, "/"), nil
}

func decodeEnvelope(resp *http.Response, action string) (*envelope, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && len(env.Data) > 0 {
			msg = dataMessage(env.Data)
		}
		return nil, &session.APIError{Service: serviceName, Action: action, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if !env.Success {
		return nil, &session.APIError{Service: serviceName, Action: action, Message: dataMessage(env.Data)}
	}
	return &env, nil
}

// dataMessage renders an error payload, which Edumate sends as a string or object.
func dataMessage(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(data)
}
