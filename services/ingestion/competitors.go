package ingestion

import (
	"context"
	"math"
	"strings"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/providers"
)

// CompetitorParams describes a competitor lookup
type CompetitorParams struct {
	BusinessName string
	Location     string
	Category     string
	Limit        int
}

// CollectCompetitors searches with twice the requested limit, removes every
// result whose name contains the target name (case-insensitive), truncates to
// the limit and averages rating and engagement over what remains.
func (c *Collector) CollectCompetitors(ctx context.Context, source string, params CompetitorParams) (*CompetitorResult, error) {
	target := strings.TrimSpace(params.BusinessName)
	if target == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "business name is required", nil)
	}
	limit := providers.ClampLimit(params.Limit)

	// the target's own name would mostly return the target
	search, err := c.CollectBusinesses(ctx, source, providers.SearchParams{
		Location: params.Location,
		Query:    params.Category,
		Category: params.Category,
		Limit:    limit * 2,
	})
	if err != nil {
		return nil, err
	}

	competitors := FilterCompetitors(search.Businesses, target, limit)
	env := search.Envelope
	env.Count = len(competitors)

	return &CompetitorResult{
		Envelope:       env,
		TargetBusiness: target,
		Location:       search.Location,
		Category:       params.Category,
		Competitors:    competitors,
		Analysis:       Analyze(competitors),
	}, nil
}

// FilterCompetitors drops name matches for target and truncates to limit.
// The input slice is never modified.
func FilterCompetitors(businesses []models.Business, target string, limit int) []models.Business {
	needle := strings.ToLower(strings.TrimSpace(target))
	out := make([]models.Business, 0, limit)
	for _, b := range businesses {
		if len(out) >= limit {
			break
		}
		if needle != "" && strings.Contains(strings.ToLower(b.Name), needle) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Analyze averages rating over rated competitors and engagement over all of
// them. Both are zero for an empty set.
func Analyze(competitors []models.Business) CompetitorAnalysis {
	a := CompetitorAnalysis{TotalCompetitors: len(competitors)}
	if len(competitors) == 0 {
		return a
	}

	var ratingSum float64
	var engagementSum int
	for _, b := range competitors {
		if b.Rating != nil {
			ratingSum += *b.Rating
			a.RatedCompetitors++
		}
		engagementSum += b.Stats.Engagement()
	}
	if a.RatedCompetitors > 0 {
		a.AverageRating = round2(ratingSum / float64(a.RatedCompetitors))
	}
	a.AverageEngagement = round2(float64(engagementSum) / float64(len(competitors)))
	return a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
