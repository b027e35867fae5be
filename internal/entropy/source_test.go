package entropy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCyclesAndCounts(t *testing.T) {
	s := NewSequence(0.1, 0.9)
	assert.Equal(t, 0.1, s.Float())
	assert.Equal(t, 0.9, s.Float())
	assert.Equal(t, 0.1, s.Float())
	assert.Equal(t, 3, s.Drawn())

	assert.Equal(t, 0.0, NewSequence().Float())
}

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float(), b.Float())
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 0, Intn(NewSequence(0), 4))
	assert.Equal(t, 3, Intn(NewSequence(0.999999), 4))
	assert.Equal(t, 0, Intn(NewSequence(0.5), 0))

	assert.Equal(t, 6, Between(NewSequence(0), 6, 18))
	assert.Equal(t, 18, Between(NewSequence(0.99999), 6, 18))

	assert.True(t, Chance(NewSequence(0.11), 0.12))
	assert.False(t, Chance(NewSequence(0.12), 0.12))

	assert.Equal(t, -1.0, Sign(NewSequence(0.2)))
	assert.Equal(t, 1.0, Sign(NewSequence(0.7)))
}

func TestCryptoInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := Crypto{}.Float()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestClientRefillFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"random":{"data":[0.25,0.5,0.75]}}}`)
	}))
	defer srv.Close()

	c := NewClient("key")
	c.endpoint = srv.URL
	c.Refill(context.Background())

	assert.Equal(t, 3, c.Pooled())
	assert.Equal(t, 0.25, c.Float())
}

func TestClientFallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := NewClient("key")
	c.endpoint = srv.URL
	c.Refill(context.Background())

	assert.Equal(t, 0, c.Pooled())
	v := c.Float()
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 1.0)
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, NewClient(""))
	assert.IsType(t, &Client{}, FromConfig("k", 0))
	assert.IsType(t, &Seeded{}, FromConfig("", 3))
	assert.IsType(t, Crypto{}, FromConfig("", 0))
}
