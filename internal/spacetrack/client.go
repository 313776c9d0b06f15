// Package spacetrack is a small Space-Track.org client: one cookie session
// per client, paced requests, and element queries by catalog id and epoch
// window. Responses are classified by status and payload shape.
package spacetrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/andres-luengo/SatCheck/internal/config"
	"github.com/andres-luengo/SatCheck/internal/dataset"
	"github.com/andres-luengo/SatCheck/internal/elements"
)

const (
	loginPath   = "/ajaxauth/login"
	historyPath = "/basicspacedata/query/class/tle/EPOCH/%s--%s/NORAD_CAT_ID/%s/orderby/TLE_LINE1 ASC/format/3le"
	latestPath  = "/basicspacedata/query/class/tle_latest/NORAD_CAT_ID/%s/orderby/TLE_LINE1 ASC/format/3le"
)

var (
	// ErrAuth means the login was rejected or the session was refused.
	ErrAuth = errors.New("space-track authentication failed")
	// ErrNoData means the query succeeded but carried no element sets.
	ErrNoData = errors.New("no element data")
)

// StatusError is an unexpected HTTP status from a query.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("space-track returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("space-track returned HTTP %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Credentials    config.Credentials
	Timeout        time.Duration
	Delay          time.Duration
	FallbackLatest bool
	Logger         *log.Logger
	Debug          bool
}

// Client holds one authenticated session.
type Client struct {
	base     string
	creds    config.Credentials
	http     *http.Client
	limiter  *rate.Limiter
	fallback bool
	log      *log.Logger
	debug    bool
	loggedIn bool
}

// New returns a client. Nothing is sent until the first query or Login.
func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Client{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		creds:    opts.Credentials,
		http:     &http.Client{Timeout: opts.Timeout, Jar: jar},
		limiter:  rate.NewLimiter(limit, 1),
		fallback: opts.FallbackLatest,
		log:      logger,
		debug:    opts.Debug,
	}, nil
}

// Login establishes the session cookie. It shares the query pacing.
func (c *Client) Login(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	form := url.Values{
		"identity": {c.creds.Identity},
		"password": {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrAuth, resp.StatusCode)
	}
	if loginRejected(body) {
		return fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(string(body)))
	}

	c.loggedIn = true
	if c.debug {
		c.log.Printf("spacetrack: logged in as %s", c.creds.Identity)
	}
	return nil
}

// loginRejected reports a {"Login":"Failed"} style body. A successful
// login answers with an empty JSON string.
func loginRejected(body []byte) bool {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	v, ok := m["Login"]
	if !ok {
		return false
	}
	s, _ := v.(string)
	return strings.EqualFold(s, "Failed")
}

// Elements returns the three-line element text for ids with epochs in
// [from, to]. When the history query comes back empty or with a non-200
// status other than 204, and fallback is on, the latest elements are
// returned instead.
func (c *Client) Elements(ctx context.Context, ids []int, from, to dataset.Date) ([]byte, error) {
	path := fmt.Sprintf(historyPath, from, to, joinIDs(ids))
	status, body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if c.fallback && status != http.StatusNoContent && (len(body) == 0 || status != http.StatusOK) {
		c.log.Printf("spacetrack: history query for %s returned HTTP %d with %d bytes, trying tle_latest", from, status, len(body))
		return c.Latest(ctx, ids)
	}

	if err := Classify(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Latest returns the most recent element set for each of ids.
func (c *Client) Latest(ctx context.Context, ids []int) ([]byte, error) {
	status, body, err := c.get(ctx, fmt.Sprintf(latestPath, joinIDs(ids)))
	if err != nil {
		return nil, err
	}
	if err := Classify(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// get performs a paced GET, logging in first and once more if the
// session has expired.
func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return 0, nil, err
		}
	}

	status, body, err := c.do(ctx, path)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized {
		c.loggedIn = false
		if err := c.Login(ctx); err != nil {
			return 0, nil, err
		}
		status, body, err = c.do(ctx, path)
		if err != nil {
			return 0, nil, err
		}
	}
	return status, body, nil
}

func (c *Client) do(ctx context.Context, path string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	u := c.base + strings.ReplaceAll(path, " ", "%20")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("query: %w", err)
	}
	if c.debug {
		c.log.Printf("spacetrack: GET %s -> %d (%d bytes, %v)", path, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))
	}
	return resp.StatusCode, body, nil
}

// Classify turns a query response into nil (usable element text) or an
// error wrapping ErrAuth, ErrNoData, or a StatusError.
func Classify(status int, body []byte) error {
	switch {
	case status == http.StatusNoContent:
		return fmt.Errorf("%w: HTTP 204", ErrNoData)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrAuth, status)
	case status != http.StatusOK:
		return &StatusError{Code: status, Body: snippet(body)}
	}
	if err := elements.Validate(string(body)); err != nil {
		return fmt.Errorf("%w: %w", ErrNoData, err)
	}
	return nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
