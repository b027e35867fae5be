package leaderboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu sync.Mutex
	kv map[string]string
}

func (m *memCache) GetMeta(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *memCache) SaveMeta(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = map[string]string{}
	}
	m.kv[key] = value
	return nil
}

var testFields = Fields{Name: "n", NetWorth: "w", Props: "p", AvgSat: "s", Year: "y", Version: "v"}

// sheetServer serves sheet at /sheet, records form posts at /form and
// fails every request while down is set.
type sheetServer struct {
	*httptest.Server
	fetches atomic.Int32
	down    atomic.Bool
	posted  chan url.Values
}

func newSheetServer(t *testing.T) *sheetServer {
	t.Helper()
	s := &sheetServer{posted: make(chan url.Values, 4)}
	mux := http.NewServeMux()
	mux.HandleFunc("/sheet", func(w http.ResponseWriter, r *http.Request) {
		if s.down.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		s.fetches.Add(1)
		io.WriteString(w, sheet)
	})
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.posted <- r.PostForm
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *sheetServer) client(formPath string) *Client {
	return NewClient(s.URL+"/sheet", s.URL+formPath, "1.1", testFields, 200*time.Millisecond, s.Server.Client())
}

func TestClient_Fetch(t *testing.T) {
	srv := newSheetServer(t)
	rows, err := srv.client("/form").Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, "1.1", r.Version)
	}

	srv.down.Store(true)
	_, err = srv.client("/form").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
}

func TestClient_Submit(t *testing.T) {
	srv := newSheetServer(t)
	err := srv.client("/form").Submit(context.Background(), Entry{
		Name: "  Ada  ", NetWorth: 42_000_000, Props: 3, AvgSat: 71, Year: 15,
	})
	require.NoError(t, err)

	form := <-srv.posted
	assert.Equal(t, "Ada", form.Get("n"))
	assert.Equal(t, "42000000", form.Get("w"))
	assert.Equal(t, "3", form.Get("p"))
	assert.Equal(t, "71", form.Get("s"))
	assert.Equal(t, "15", form.Get("y"))
	assert.Equal(t, "1.1", form.Get("v"))
}

func TestClient_SubmitTimeoutCountsAsSuccess(t *testing.T) {
	srv := newSheetServer(t)
	err := srv.client("/slow").Submit(context.Background(), Entry{Name: "Ada"})
	assert.NoError(t, err)
}

func TestClient_SubmitRejected(t *testing.T) {
	srv := newSheetServer(t)
	err := srv.client("/missing").Submit(context.Background(), Entry{Name: "Ada"})
	assert.ErrorIs(t, err, ErrSubmit)
}

func TestBoard_CachesWithinTTL(t *testing.T) {
	srv := newSheetServer(t)
	cache := &memCache{}
	b := NewBoard(srv.client("/form"), cache, time.Minute)
	now := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	top, err := b.Top(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Bo", top[0].Name)

	_, err = b.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.fetches.Load())

	now = now.Add(2 * time.Minute)
	stats, err := b.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.fetches.Load())
	assert.Equal(t, 4, stats.TotalGames)
	assert.Equal(t, 3, stats.UniqueNames)
}

func TestBoard_StaleCacheOnFailure(t *testing.T) {
	srv := newSheetServer(t)
	b := NewBoard(srv.client("/form"), &memCache{}, time.Minute)
	now := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_, err := b.Refresh(context.Background())
	require.NoError(t, err)

	srv.down.Store(true)
	now = now.Add(time.Hour)
	raw, err := b.Raw(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 4)
}

func TestBoard_NoCacheNoSheet(t *testing.T) {
	srv := newSheetServer(t)
	srv.down.Store(true)
	b := NewBoard(srv.client("/form"), &memCache{}, time.Minute)
	_, err := b.Top(context.Background(), 10)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestBoard_SubmitRefreshes(t *testing.T) {
	srv := newSheetServer(t)
	b := NewBoard(srv.client("/form"), &memCache{}, time.Hour)

	require.NoError(t, b.Submit(context.Background(), Entry{Name: "Ada", NetWorth: 1}))
	<-srv.posted
	assert.Equal(t, int32(1), srv.fetches.Load())

	_, err := b.Raw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.fetches.Load())
}
