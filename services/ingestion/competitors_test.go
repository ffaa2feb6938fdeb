package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
)

func TestFilterCompetitors(t *testing.T) {
	businesses := sampleBusinesses("Joe's Pizza", "JOE'S PIZZA Express", "Lombardi's", "Prince St Pizza", "Rubirosa")

	got := FilterCompetitors(businesses, "joe's pizza", 10)
	names := make([]string, 0, len(got))
	for _, b := range got {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Lombardi's", "Prince St Pizza", "Rubirosa"}, names)

	assert.Len(t, FilterCompetitors(businesses, "joe's pizza", 2), 2)
	assert.Len(t, businesses, 5)
}

func TestAnalyze(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		a := Analyze(nil)
		assert.Zero(t, a.TotalCompetitors)
		assert.Zero(t, a.AverageRating)
		assert.Zero(t, a.AverageEngagement)
	})

	t.Run("only the target remains", func(t *testing.T) {
		remaining := FilterCompetitors(sampleBusinesses("Blue Bottle"), "blue bottle", 5)
		a := Analyze(remaining)
		assert.Equal(t, 0.0, a.AverageRating)
		assert.Equal(t, 0.0, a.AverageEngagement)
	})

	t.Run("mixed ratings and engagement", func(t *testing.T) {
		competitors := []models.Business{
			{Name: "A", Rating: models.Float64(4.5), Stats: models.Stats{TipCount: models.Int(10)}},
			{Name: "B", Rating: models.Float64(3.0), Stats: models.Stats{ReviewCount: models.Int(20)}},
			{Name: "C", Stats: models.Stats{}},
		}
		a := Analyze(competitors)
		assert.Equal(t, 3, a.TotalCompetitors)
		assert.Equal(t, 2, a.RatedCompetitors)
		assert.Equal(t, 3.75, a.AverageRating)
		assert.Equal(t, 10.0, a.AverageEngagement)
	})
}

func TestCollectCompetitors(t *testing.T) {
	f := newFixture(t, nil, &upstream{
		name:       "yelp",
		businesses: sampleBusinesses("Tartine", "Tartine Manufactory", "B. Patisserie", "Arsicault", "Jane", "Mr. Holmes"),
	})

	result, err := f.collector.CollectCompetitors(context.Background(), "yelp", CompetitorParams{
		BusinessName: "tartine",
		Location:     "San Francisco",
		Category:     "bakeries",
		Limit:        3,
	})
	require.NoError(t, err)

	assert.Equal(t, "yelp", result.Source)
	assert.Equal(t, 3, result.Count)
	assert.Len(t, result.Competitors, 3)
	for _, b := range result.Competitors {
		assert.NotContains(t, b.Name, "Tartine")
	}
	assert.Equal(t, 4.0, result.Analysis.AverageRating)
	assert.Equal(t, 10.0, result.Analysis.AverageEngagement)
	assert.Equal(t, "tartine", result.TargetBusiness)
	assert.Equal(t, "bakeries", f.upstream.lastParams.Query)
	assert.Equal(t, 6, f.upstream.lastParams.Limit)
}

func TestCollectCompetitors_SearchParams(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		limit     int
		wantQuery string
		wantLimit int
	}{
		{"no category searches broadly", "", 3, "", 6},
		{"category is the query", "bakeries", 5, "bakeries", 10},
		{"limit is clamped before doubling", "", 80, "", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, &upstream{
				name:       "yelp",
				businesses: sampleBusinesses("Tartine", "Arsicault", "Jane"),
			})

			result, err := f.collector.CollectCompetitors(context.Background(), "yelp", CompetitorParams{
				BusinessName: "Tartine",
				Location:     "San Francisco",
				Category:     tt.category,
				Limit:        tt.limit,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantQuery, f.upstream.lastParams.Query)
			assert.Equal(t, tt.wantLimit, f.upstream.lastParams.Limit)
			assert.Equal(t, 2, result.Count)
		})
	}
}

func TestCollectCompetitors_Validation(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.collector.CollectCompetitors(context.Background(), "auto", CompetitorParams{Location: "SF"})
	assert.True(t, services.IsValidationError(err))
}
