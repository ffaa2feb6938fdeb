package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Budget operations
const (
	OperationSearch     = "search"
	OperationDetails    = "details"
	OperationReviews    = "reviews"
	OperationPhotos     = "photos"
	OperationCategories = "categories"
)

// Governance holds spending and throttling policy for the upstream providers.
// Loaded from an optional YAML file; every missing key falls back to DefaultGovernance.
type Governance struct {
	GlobalCeiling     float64                       `yaml:"global_ceiling"`
	AlertRatio        float64                       `yaml:"alert_ratio"`
	CostMilestones    []float64                     `yaml:"cost_milestones"`
	DefaultDailyLimit int                           `yaml:"default_daily_limit"`
	DailyLimits       map[string]int                `yaml:"daily_limits"`
	DefaultCost       float64                       `yaml:"default_cost"`
	Costs             map[string]map[string]float64 `yaml:"costs"`
	DefaultRateLimit  int                           `yaml:"default_rate_limit"`
	RateLimits        map[string]int                `yaml:"rate_limits"`
	RateWindow        time.Duration                 `yaml:"rate_window"`
}

// DefaultGovernance returns the built-in policy
func DefaultGovernance() *Governance {
	return &Governance{
		GlobalCeiling:     5.0,
		AlertRatio:        0.8,
		CostMilestones:    []float64{1.0, 2.5, 4.0},
		DefaultDailyLimit: 50,
		DailyLimits: map[string]int{
			"google_places": 100,
			"yelp":          500,
			"foursquare":    100,
		},
		DefaultCost: 0.01,
		Costs: map[string]map[string]float64{
			"google_places": {
				OperationSearch:     0.017,
				OperationDetails:    0.005,
				OperationReviews:    0.005,
				OperationPhotos:     0.007,
				OperationCategories: 0.0,
			},
			"yelp": {
				OperationSearch:     0.0,
				OperationDetails:    0.0,
				OperationReviews:    0.0,
				OperationCategories: 0.0,
			},
			"foursquare": {
				OperationSearch:     0.0,
				OperationDetails:    0.0,
				OperationReviews:    0.0,
				OperationCategories: 0.0,
			},
		},
		DefaultRateLimit: 10,
		RateLimits: map[string]int{
			"google_places": 10,
			"yelp":          10,
			"foursquare":    10,
		},
		RateWindow: 60 * time.Second,
	}
}

// LoadGovernance reads a YAML policy file. An empty path yields the defaults.
func LoadGovernance(path string) (*Governance, error) {
	if path == "" {
		return DefaultGovernance(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read governance: %w", err)
	}
	return ParseGovernance(b)
}

// ParseGovernance decodes YAML and fills unset keys from the defaults
func ParseGovernance(b []byte) (*Governance, error) {
	var g Governance
	if err := yaml.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	g.applyDefaults(DefaultGovernance())
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Governance) applyDefaults(d *Governance) {
	if g.GlobalCeiling == 0 {
		g.GlobalCeiling = d.GlobalCeiling
	}
	if g.AlertRatio == 0 {
		g.AlertRatio = d.AlertRatio
	}
	if g.CostMilestones == nil {
		g.CostMilestones = d.CostMilestones
	}
	if g.DefaultDailyLimit == 0 {
		g.DefaultDailyLimit = d.DefaultDailyLimit
	}
	if g.DefaultCost == 0 {
		g.DefaultCost = d.DefaultCost
	}
	if g.DefaultRateLimit == 0 {
		g.DefaultRateLimit = d.DefaultRateLimit
	}
	if g.RateWindow == 0 {
		g.RateWindow = d.RateWindow
	}
	if g.DailyLimits == nil {
		g.DailyLimits = make(map[string]int)
	}
	for p, n := range d.DailyLimits {
		if _, ok := g.DailyLimits[p]; !ok {
			g.DailyLimits[p] = n
		}
	}
	if g.RateLimits == nil {
		g.RateLimits = make(map[string]int)
	}
	for p, n := range d.RateLimits {
		if _, ok := g.RateLimits[p]; !ok {
			g.RateLimits[p] = n
		}
	}
	if g.Costs == nil {
		g.Costs = make(map[string]map[string]float64)
	}
	for p, ops := range d.Costs {
		table, ok := g.Costs[p]
		if !ok {
			table = make(map[string]float64)
			g.Costs[p] = table
		}
		for op, c := range ops {
			if _, ok := table[op]; !ok {
				table[op] = c
			}
		}
	}
}

// Validate rejects policies that could never admit a request or would never alert
func (g *Governance) Validate() error {
	if g.GlobalCeiling < 0 {
		return fmt.Errorf("global ceiling must not be negative")
	}
	if g.AlertRatio <= 0 || g.AlertRatio > 1 {
		return fmt.Errorf("alert ratio must be in (0, 1]")
	}
	if g.DefaultDailyLimit < 0 {
		return fmt.Errorf("default daily limit must not be negative")
	}
	if g.DefaultRateLimit <= 0 {
		return fmt.Errorf("default rate limit must be positive")
	}
	if g.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	for p, n := range g.RateLimits {
		if n <= 0 {
			return fmt.Errorf("rate limit for %s must be positive", p)
		}
	}
	return nil
}

// DailyLimit returns the per-day request cap for a provider
func (g *Governance) DailyLimit(provider string) int {
	if n, ok := g.DailyLimits[provider]; ok {
		return n
	}
	return g.DefaultDailyLimit
}

// Cost returns the tabulated dollar cost of one provider operation
func (g *Governance) Cost(provider, operation string) float64 {
	if ops, ok := g.Costs[provider]; ok {
		if c, ok := ops[operation]; ok {
			return c
		}
	}
	return g.DefaultCost
}

// RateLimit returns the sliding-window request cap for a provider
func (g *Governance) RateLimit(provider string) int {
	if n, ok := g.RateLimits[provider]; ok {
		return n
	}
	return g.DefaultRateLimit
}
