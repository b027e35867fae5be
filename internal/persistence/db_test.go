package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tapajos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// playedGame returns a game with a financed and a cash building, an attic
// project, a queued payout and an open incident.
func playedGame(t *testing.T) *engine.Game {
	t.Helper()
	g := engine.NewGame(engine.DefaultOptions(), entropy.NewSeeded(42))
	g.MarketPool = []engine.Offer{
		{ID: "o1", Type: economy.TypeGovernor, Condition: economy.ConditionWorn, Price: 5_000_000, Units: 8},
		{ID: "o2", Type: economy.TypeFunkis, Condition: economy.ConditionNew, Central: true, Price: 9_000_000, Units: 12},
		{ID: "o3", Type: economy.TypeOldTown, Condition: economy.ConditionDilapidated, Price: 20_000_000, Units: 14},
	}
	g.MarketPoolTurn = g.Turn
	_, err := g.BuyFinanced("o2")
	require.NoError(t, err)
	b, err := g.BuyCash("o1")
	require.NoError(t, err)
	_, err = g.StartAtticConversion(b.ID)
	require.NoError(t, err)
	g.QueuePayout(123_456, "bonus")
	g.Incident = &engine.Incident{Kind: engine.IncidentMarketShock, Turn: g.Turn, Delta: -0.03}
	return g
}

func TestSaveAndLoadGame(t *testing.T) {
	db := openTestDB(t)
	g := playedGame(t)

	has, err := db.HasGame()
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, db.SaveGame(g.State))
	has, err = db.HasGame()
	require.NoError(t, err)
	assert.True(t, has)

	st, err := db.LoadGame()
	require.NoError(t, err)
	assert.Equal(t, g.State, st)
}

func TestSaveGame_ReplacesPreviousSave(t *testing.T) {
	db := openTestDB(t)
	g := playedGame(t)
	require.NoError(t, db.SaveGame(g.State))

	_, err := g.Sell(g.Buildings[0].ID)
	require.NoError(t, err)
	_, err = g.AdvanceTurn()
	require.NoError(t, err)
	require.NoError(t, db.SaveGame(g.State))

	st, err := db.LoadGame()
	require.NoError(t, err)
	assert.Equal(t, g.Turn, st.Turn)
	assert.Len(t, st.Buildings, len(g.Buildings))
	assert.Len(t, st.Ledger.Loans, len(g.Ledger.Loans))
	assert.Equal(t, g.Cash, st.Cash)
}

func TestLoadGame_Empty(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadGame()
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestDeleteGame_KeepsResultsAndMeta(t *testing.T) {
	db := openTestDB(t)
	g := playedGame(t)
	require.NoError(t, db.SaveGame(g.State))
	require.NoError(t, db.SaveEvents(g.Events))
	require.NoError(t, db.SaveMeta("leaderboard:raw", "cached"))
	_, err := db.SaveResult(Result{Name: "Ada", NetWorth: 1})
	require.NoError(t, err)

	require.NoError(t, db.DeleteGame())

	has, err := db.HasGame()
	require.NoError(t, err)
	assert.False(t, has)
	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	assert.Empty(t, events)

	v, err := db.GetMeta("leaderboard:raw")
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
	results, err := db.Results(10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestEvents(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveEvents(nil))
	require.NoError(t, db.SaveEvents([]engine.Event{
		{Turn: 1, Description: "first", Category: "market"},
		{Turn: 2, Description: "second", Category: "turn"},
		{Turn: 2, Description: "third", Category: "incident"},
	}))

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Description)
	assert.Equal(t, "second", events[1].Description)
	assert.Equal(t, 2, events[1].Turn)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetMeta("missing")
	assert.Error(t, err)

	require.NoError(t, db.SaveMeta("k", "v1"))
	require.NoError(t, db.SaveMeta("k", "v2"))
	v, err := db.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestResults_OrderedByNetWorth(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2025, 8, 22, 0, 14, 31, 0, time.UTC)
	for i, r := range []Result{
		{Name: "Low", NetWorth: 5_000_000, Year: 15, Version: "v1", CreatedAt: base},
		{Name: "High", NetWorth: 90_000_000, PropertyCount: 4, AvgSatisfaction: 71, Year: 15, Version: "v1", CreatedAt: base.Add(time.Hour)},
		{Name: "Mid", NetWorth: 20_000_000, Year: 15, Version: "v1", CreatedAt: base.Add(2 * time.Hour)},
	} {
		id, err := db.SaveResult(r)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	results, err := db.Results(2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "High", results[0].Name)
	assert.Equal(t, 4, results[0].PropertyCount)
	assert.Equal(t, 71, results[0].AvgSatisfaction)
	assert.True(t, results[0].CreatedAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, "Mid", results[1].Name)
}
