package models

import "sort"

// BudgetState is the persisted spending ledger.
// TotalCost only grows; DailyUsage is keyed by "YYYY-MM-DD" then provider name.
type BudgetState struct {
	TotalCost  float64                   `json:"total_cost"`
	DailyUsage map[string]map[string]int `json:"daily_usage"`
	AlertsSent []string                  `json:"alerts_sent"`
}

// NewBudgetState creates an empty ledger
func NewBudgetState() *BudgetState {
	return &BudgetState{
		DailyUsage: make(map[string]map[string]int),
		AlertsSent: []string{},
	}
}

// Normalize fills nil collections left by a sparse persisted document
func (s *BudgetState) Normalize() {
	if s.DailyUsage == nil {
		s.DailyUsage = make(map[string]map[string]int)
	}
	if s.AlertsSent == nil {
		s.AlertsSent = []string{}
	}
}

// Count returns the request count for a provider on a date
func (s *BudgetState) Count(date, provider string) int {
	day, ok := s.DailyUsage[date]
	if !ok {
		return 0
	}
	return day[provider]
}

// Increment adds one request for a provider on a date
func (s *BudgetState) Increment(date, provider string) {
	day, ok := s.DailyUsage[date]
	if !ok {
		day = make(map[string]int)
		s.DailyUsage[date] = day
	}
	day[provider]++
}

// HasAlert reports whether an alert message was already fired
func (s *BudgetState) HasAlert(message string) bool {
	for _, a := range s.AlertsSent {
		if a == message {
			return true
		}
	}
	return false
}

// Dates returns the tracked dates in ascending order
func (s *BudgetState) Dates() []string {
	dates := make([]string, 0, len(s.DailyUsage))
	for d := range s.DailyUsage {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Clone returns a deep copy
func (s *BudgetState) Clone() *BudgetState {
	c := &BudgetState{
		TotalCost:  s.TotalCost,
		DailyUsage: make(map[string]map[string]int, len(s.DailyUsage)),
		AlertsSent: append([]string{}, s.AlertsSent...),
	}
	for date, day := range s.DailyUsage {
		cd := make(map[string]int, len(day))
		for p, n := range day {
			cd[p] = n
		}
		c.DailyUsage[date] = cd
	}
	return c
}
