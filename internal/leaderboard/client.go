package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrFetch  = errors.New("leaderboard fetch failed")
	ErrSubmit = errors.New("leaderboard submit failed")
)

// MaxNameLen is the longest player name the sheet stores.
const MaxNameLen = 24

// Entry is a finished game as submitted to the sheet.
type Entry struct {
	Name     string
	NetWorth int64
	Props    int
	AvgSat   int
	Year     int
}

// Fields names the form input for each submitted value.
type Fields struct {
	Name, NetWorth, Props, AvgSat, Year, Version string
}

// Client talks to the published sheet and its submission form.
type Client struct {
	SheetURL string
	FormURL  string
	Version  string
	Fields   Fields
	// SubmitTimeout bounds a submission. Running out of time counts as
	// success because the form accepts the post before it answers.
	SubmitTimeout time.Duration

	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a sheet client. A nil httpClient uses a 10s-timeout
// default.
func NewClient(sheetURL, formURL, version string, fields Fields, submitTimeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		SheetURL:      sheetURL,
		FormURL:       formURL,
		Version:       version,
		Fields:        fields,
		SubmitTimeout: submitTimeout,
		httpClient:    httpClient,
		now:           time.Now,
	}
}

// Fetch downloads the sheet and returns the rows of the client's version.
func (c *Client) Fetch(ctx context.Context) ([]Row, error) {
	u, err := url.Parse(c.SheetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet url: %v", ErrFetch, err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	rows, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	rows = ForVersion(rows, c.Version)
	slog.Debug("leaderboard fetched", "rows", len(rows), "version", c.Version)
	return rows, nil
}

// Submit posts a finished game to the form.
func (c *Client) Submit(ctx context.Context, e Entry) error {
	form := url.Values{}
	form.Set(c.Fields.Name, CleanName(e.Name))
	form.Set(c.Fields.NetWorth, strconv.FormatInt(e.NetWorth, 10))
	form.Set(c.Fields.Props, strconv.Itoa(e.Props))
	form.Set(c.Fields.AvgSat, strconv.Itoa(e.AvgSat))
	form.Set(c.Fields.Year, strconv.Itoa(e.Year))
	form.Set(c.Fields.Version, c.Version)

	if c.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SubmitTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.FormURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			slog.Warn("leaderboard submit timed out, assuming accepted", "name", e.Name)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrSubmit, resp.StatusCode)
	}
	slog.Info("leaderboard submitted", "name", e.Name, "net_worth", e.NetWorth)
	return nil
}

// CleanName trims a player name and cuts it to MaxNameLen runes. Blank
// names become the default player name.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		name = string([]rune(name)[:MaxNameLen])
	}
	return name
}
