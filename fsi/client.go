// ABOUTME: FSI library API client for patron listing and upserts
// ABOUTME: Handles the code/token handshake, paged patron search and set_patron writes
package fsi

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

	"github.com/harperreed/patronsync/logging"
	"github.com/harperreed/patronsync/models"
	"github.com/harperreed/patronsync/session"
	"golang.org/x/oauth2"
)

const (
	serviceName = "fsi"

	// DefaultPageSize is the search_patron page size.
	DefaultPageSize = 50

	invalidSessionMsg = "invalidate session token"
)

// ErrInvalidSession is returned when FSI rejects a freshly issued token too.
var ErrInvalidSession = errors.New("fsi session token rejected")

// DefaultSearchWords together cover every patron role FSI holds.
var DefaultSearchWords = []string{"Administrator", "Staff", "Student"}

// Config holds FSI connection settings.
type Config struct {
	URL         string
	APIKey      string
	APISecret   string
	PageSize    int
	SearchWords []string
	Timeout     time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	session *session.Session
	now     func() time.Time
}

// response is the union of every FSI action reply.
type response struct {
	Result     *bool           `json:"result"`
	Msg        string          `json:"msg"`
	Item       json.RawMessage `json:"item"`
	Code       json.RawMessage `json:"code"`
	Token      string          `json:"token"`
	RenewToken string          `json:"renewtoken"`
	Expire     json.RawMessage `json:"expire"`
}

// NewClient creates an FSI client with its own token session.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if len(cfg.SearchWords) == 0 {
		cfg.SearchWords = DefaultSearchWords
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
	c.session = session.New(serviceName, c.fetchToken)
	return c
}

// Authenticate acquires a token up front so credential problems surface
// before any listing is read.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.session.TokenContext(ctx)
	return err
}

// FetchPatrons lists every patron through search_patron, one keyword at a
// time, paging until a page comes back empty. Any failure fails the listing.
func (c *Client) FetchPatrons(ctx context.Context) ([]models.PatronRecord, error) {
	log := logging.FromContext(ctx)

	var all []models.PatronRecord
	for _, word := range c.cfg.SearchWords {
		for page := 1; ; page++ {
			resp, err := c.call(ctx, "search_patron", searchForm(word, page, c.cfg.PageSize))
			if err != nil {
				return nil, fmt.Errorf("failed to search FSI: %w", err)
			}

			var items []models.PatronRecord
			if len(resp.Item) > 0 && string(resp.Item) != "null" {
				if err := json.Unmarshal(resp.Item, &items); err != nil {
					return nil, fmt.Errorf("failed to decode FSI patrons page %d: %w", page, err)
				}
			}
			if len(items) == 0 {
				break
			}
			all = append(all, items...)
			log.Debug().Str("keyword", word).Int("page", page).Int("count", len(items)).Msg("Fetched FSI page")
		}
	}
	return all, nil
}

// UpsertPatron creates or updates a patron keyed by username.
func (c *Client) UpsertPatron(ctx context.Context, payload models.PatronPayload) error {
	form := url.Values{
		"keyfield": {"username"},
		"allownew": {"True"},
		"index":    {"1"},
	}
	for _, kv := range payload.Fields() {
		form.Set(kv[0], kv[1])
	}

	resp, err := c.call(ctx, "set_patron", form)
	if err != nil {
		return err
	}

	var items []struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp.Item, &items); err == nil && len(items) > 0 {
		logging.FromContext(ctx).Debug().Str("username", items[0].Username).Msg("FSI accepted patron")
	}
	return nil
}

// GetPatron looks a single patron up by email and returns FSI's item as-is.
func (c *Client) GetPatron(ctx context.Context, email string) (any, error) {
	resp, err := c.call(ctx, "get_patron", url.Values{
		"keyfield": {"email"},
		"keyvalue": {email},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get FSI patron: %w", err)
	}

	var item any
	if len(resp.Item) > 0 {
		if err := json.Unmarshal(resp.Item, &item); err != nil {
			return nil, fmt.Errorf("failed to decode FSI patron: %w", err)
		}
	}
	return item, nil
}

// call runs an authenticated action. A rejected session token is dropped
// and the action retried once with a fresh one.
func (c *Client) call(ctx context.Context, action string, form url.Values) (*response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.session.TokenContext(ctx)
		if err != nil {
			return nil, err
		}

		withToken := cloneForm(form)
		withToken.Set("token", token.AccessToken)

		resp, err := c.post(ctx, action, withToken)
		if err == nil {
			return resp, nil
		}
		if !isInvalidSession(err) {
			return nil, err
		}
		c.session.Invalidate()
		if attempt > 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
		logging.FromContext(ctx).Warn().Str("action", action).Msg("FSI session token rejected, re-authenticating")
	}
}

// post sends one form-encoded action and checks the result flag.
func (c *Client) post(ctx context.Context, action string, form url.Values) (*response, error) {
	form.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &session.APIError{Service: serviceName, Action: action, StatusCode: httpResp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if resp.Result != nil && !*resp.Result {
		return nil, &session.APIError{Service: serviceName, Action: action, Message: resp.Msg}
	}
	return &resp, nil
}

// fetchToken performs the get_code then get_token handshake.
func (c *Client) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	codeResp, err := c.post(ctx, "get_code", url.Values{"apikey": {c.cfg.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to get API code: %w", err)
	}
	code := rawString(codeResp.Code)
	if code == "" {
		return nil, &session.APIError{Service: serviceName, Action: "get_code", Message: codeResp.Msg}
	}

	tokenResp, err := c.post(ctx, "get_token", url.Values{
		"code":      {code},
		"apisecret": {c.cfg.APISecret},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get API token: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  tokenResp.Token,
		RefreshToken: tokenResp.RenewToken,
		Expiry:       parseExpire(tokenResp.Expire, c.now()),
	}, nil
}

// searchForm builds the search_patron keyword tokens FSI expects for a
// contains-match across all fields.
func searchForm(word string, page, pageSize int) url.Values {
	tokens := [][2]string{
		{"findform_key", "ALL"},
		{"findform_value", word},
		{"findform_condition", "AND"},
		{"findform_method", "CONTAIN"},
		{"findform_type", "STRING"},
	}
	form := url.Values{
		"pagenumber": {strconv.Itoa(page)},
		"pagecount":  {strconv.Itoa(pageSize)},
	}
	for i, kv := range tokens {
		form.Set(fmt.Sprintf("keyword[0][tokens][%d][key]", i), kv[0])
		form.Set(fmt.Sprintf("keyword[0][tokens][%d][value]", i), kv[1])
	}
	return form
}

// parseExpire reads the token expiry, which FSI sends either as a unix
// timestamp, a lifetime in seconds, or a "2006-01-02 15:04:05" string.
// Anything unreadable means the token is kept until FSI rejects it.
func parseExpire(raw json.RawMessage, now time.Time) time.Time {
	s := rawString(raw)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return time.Time{}
		}
		if n > 1_000_000_000 {
			return time.Unix(n, 0)
		}
		return now.Add(time.Duration(n) * time.Second)
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isInvalidSession(err error) bool {
	var apiErr *session.APIError
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), invalidSessionMsg)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func cloneForm(form url.Values) url.Values {
	out := make(url.Values, len(form)+1)
	for k, v := range form {
		out[k] = append([]string(nil), v...)
	}
	return out
}
