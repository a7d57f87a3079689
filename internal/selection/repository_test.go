package selection

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/pkg/config"
	"github.com/wonny/longshort/pkg/database"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(context.Background(), &config.Config{Database: config.DatabaseConfig{
		URL:      url,
		MaxConns: 2,
		MinConns: 1,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewRepository(db.Pool)
}

func TestRepository_SelectionRoundTrip(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	date := time.Date(2001, 1, 8, 0, 0, 0, 0, time.UTC)

	sel := &contracts.Selection{
		Date:   date,
		Longs:  []contracts.RankedSecurity{{Symbol: "A", Rank: 1, Score: 2, Side: contracts.SideLong}},
		Shorts: []contracts.RankedSecurity{{Symbol: "C", Rank: 3, Score: -2, Side: contracts.SideShort}},
		Scores: []contracts.CombinedScore{
			{Symbol: "A", Score: 2, ValidFactors: 2, Factors: map[string]float64{"value": 1, "quality": 1}},
			{Symbol: "B", Score: 0, ValidFactors: 1, Factors: map[string]float64{"value": 0}},
			{Symbol: "C", Score: -2, ValidFactors: 2, Factors: map[string]float64{"value": -1, "quality": -1}},
		},
	}
	require.NoError(t, repo.SaveSelection(ctx, sel))

	got, err := repo.GetSelection(ctx, date)
	require.NoError(t, err)
	require.Len(t, got.Scores, 3)
	assert.Equal(t, "A", got.Scores[0].Symbol)
	assert.InDelta(t, 1.0, got.Scores[0].Factors["quality"], 1e-12)

	require.Len(t, got.Longs, 1)
	require.Len(t, got.Shorts, 1)
	assert.Equal(t, "A", got.Longs[0].Symbol)
	assert.Equal(t, "C", got.Shorts[0].Symbol)

	empty, err := repo.GetSelection(ctx, date.AddDate(-50, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, empty.Scores)
}
