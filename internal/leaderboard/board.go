package leaderboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Cache is a small key/value store for the last fetched sheet. A miss may
// be reported as an error or as an empty value.
type Cache interface {
	GetMeta(key string) (string, error)
	SaveMeta(key, value string) error
}

type snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Rows      []Row     `json:"rows"`
}

// Board serves the leaderboard from cache, refreshing from the sheet when
// the cached copy is older than TTL. A failed refresh falls back to the
// stale copy.
type Board struct {
	client *Client
	cache  Cache
	ttl    time.Duration
	now    func() time.Time

	mu sync.Mutex
}

func NewBoard(client *Client, cache Cache, ttl time.Duration) *Board {
	return &Board{client: client, cache: cache, ttl: ttl, now: time.Now}
}

func (b *Board) key() string {
	return "leaderboard:" + b.client.Version
}

func (b *Board) load() (snapshot, bool) {
	raw, err := b.cache.GetMeta(b.key())
	if err != nil || raw == "" {
		return snapshot{}, false
	}
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		slog.Warn("leaderboard cache unreadable", "error", err)
		return snapshot{}, false
	}
	return s, true
}

func (b *Board) store(s snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := b.cache.SaveMeta(b.key(), string(data)); err != nil {
		slog.Warn("leaderboard cache write failed", "error", err)
	}
}

// Refresh fetches the sheet and replaces the cached copy.
func (b *Board) Refresh(ctx context.Context) ([]Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refresh(ctx)
}

func (b *Board) refresh(ctx context.Context) ([]Row, error) {
	rows, err := b.client.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	b.store(snapshot{FetchedAt: b.now(), Rows: rows})
	return rows, nil
}

// Raw returns every game of the current version. The error is non-nil only
// when the sheet is unreachable and nothing is cached.
func (b *Board) Raw(ctx context.Context) ([]Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cached, ok := b.load()
	if ok && b.now().Sub(cached.FetchedAt) < b.ttl {
		return cached.Rows, nil
	}
	rows, err := b.refresh(ctx)
	if err != nil {
		if ok {
			slog.Warn("leaderboard refresh failed, serving cache", "error", err, "age", b.now().Sub(cached.FetchedAt))
			return cached.Rows, nil
		}
		return nil, err
	}
	return rows, nil
}

// Top returns at most n ranked players, all of them when n <= 0.
func (b *Board) Top(ctx context.Context, n int) ([]Row, error) {
	raw, err := b.Raw(ctx)
	if err != nil {
		return nil, err
	}
	top := Top(raw)
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top, nil
}

func (b *Board) Stats(ctx context.Context) (Stats, error) {
	raw, err := b.Raw(ctx)
	if err != nil {
		return Stats{}, err
	}
	return StatsOf(raw), nil
}

// Submit posts a game and refreshes the cached sheet. The refresh is best
// effort; the submission result is what is returned.
func (b *Board) Submit(ctx context.Context, e Entry) error {
	if err := b.client.Submit(ctx, e); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.refresh(ctx); err != nil {
		slog.Warn("leaderboard refresh after submit failed", "error", err)
		if cached, ok := b.load(); ok {
			cached.FetchedAt = time.Time{}
			b.store(cached)
		}
	}
	return nil
}
