package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services/providers"
)

const (
	maxLimit     = 20
	maxGenerated = 1000
)

type template struct {
	Name     string
	Category models.Category
	Price    int
}

var templates = []template{
	{"Coffee House", models.Category{ID: "coffee", Name: "Coffee & Tea"}, 1},
	{"Pizzeria", models.Category{ID: "pizza", Name: "Pizza"}, 1},
	{"Bistro", models.Category{ID: "restaurant", Name: "Restaurant"}, 3},
	{"Bakery", models.Category{ID: "bakery", Name: "Bakery"}, 1},
	{"Taproom", models.Category{ID: "bar", Name: "Bar"}, 2},
	{"Fitness Studio", models.Category{ID: "gym", Name: "Gym"}, 2},
	{"Hair Salon", models.Category{ID: "salon", Name: "Beauty Salon"}, 2},
	{"Bookstore", models.Category{ID: "books", Name: "Bookstore"}, 2},
}

type city struct {
	Name    string
	State   string
	Lat     float64
	Lng     float64
	ZipBase int
}

var cities = []city{
	{"New York", "NY", 40.7128, -74.0060, 10001},
	{"Los Angeles", "CA", 34.0522, -118.2437, 90001},
	{"Chicago", "IL", 41.8781, -87.6298, 60601},
	{"Houston", "TX", 29.7604, -95.3698, 77001},
	{"Phoenix", "AZ", 33.4484, -112.0740, 85001},
	{"Philadelphia", "PA", 39.9526, -75.1652, 19101},
	{"San Antonio", "TX", 29.4241, -98.4936, 78201},
	{"San Diego", "CA", 32.7157, -117.1611, 92101},
}

var (
	prefixes = []string{"Golden", "Urban", "Corner", "Blue Door", "Main Street", "Riverside", "Old Town", "Sunset"}
	streets  = []string{"Main St", "Oak Ave", "Maple Dr", "Broadway", "Market St", "2nd Ave", "Elm St", "Park Blvd"}
	authors  = []string{"Alex P.", "Jordan K.", "Sam R.", "Taylor M.", "Casey L.", "Riley D."}
	snippets = []string{
		"Friendly staff and quick service.",
		"A bit crowded at lunch, but worth it.",
		"Prices went up recently.",
		"My go-to spot in the neighborhood.",
		"Clean, bright, and well organized.",
		"Would not come back after the last visit.",
	}
)

// reviewEpoch anchors synthesized review timestamps
var reviewEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Adapter generates plausible business data without network access.
// It is never metered and never fails. Ids have the form
// mock_{city}_{category}_{n} and every generated record is a function of
// its id, so a details lookup returns the business the search produced.
type Adapter struct {
	mu        sync.Mutex
	rng       *rand.Rand
	next      int
	generated map[string]models.Business
	order     []string
}

// NewAdapter creates a mock adapter. A zero seed uses the current time.
func NewAdapter(seed int64) *Adapter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Adapter{
		rng:       rand.New(rand.NewSource(seed)),
		generated: make(map[string]models.Business),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string { return models.SourceMock }

// Metered reports that mock calls bypass the governors
func (a *Adapter) Metered() bool { return false }

// Limits returns the mock ceilings
func (a *Adapter) Limits() providers.Limits {
	return providers.Limits{MaxLimit: maxLimit}
}

// Search generates up to the clamped limit of businesses around the location
func (a *Adapter) Search(ctx context.Context, params providers.SearchParams) ([]models.Business, error) {
	params = params.Clamp(a.Limits())
	c := resolveCity(params.Location)
	pool := matchTemplates(params.Query, params.Category)

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Business, 0, params.Limit)
	for i := 0; i < params.Limit; i++ {
		t := pool[a.rng.Intn(len(pool))]
		id := fmt.Sprintf("mock_%s_%s_%d", slug(c.Name), t.Category.ID, a.next)
		a.next++
		b := generate(rand.New(rand.NewSource(seedFor(id))), id, c, t)
		a.remember(b)
		out = append(out, b)
	}
	return out, nil
}

// remember keeps the most recent records so ids from unknown places resolve
// to the same city in GetDetails. Callers hold mu.
func (a *Adapter) remember(b models.Business) {
	if _, ok := a.generated[b.ID]; !ok {
		a.order = append(a.order, b.ID)
	}
	a.generated[b.ID] = b
	for len(a.order) > maxGenerated {
		delete(a.generated, a.order[0])
		a.order = a.order[1:]
	}
}

// GetDetails returns the searched record for id, enriched with contact and
// hours. Unseen ids get a business derived only from the id.
func (a *Adapter) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	a.mu.Lock()
	b, ok := a.generated[id]
	a.mu.Unlock()
	if !ok {
		b = synthesize(id)
	}

	rng := rand.New(rand.NewSource(seedFor(id + "/details")))
	b.Description = fmt.Sprintf("A neighborhood %s in %s.", strings.ToLower(b.Categories[0].Name), b.City)
	b.Website = "https://example.com/" + id
	b.Phone = fmt.Sprintf("(555) %03d-%04d", rng.Intn(1000), rng.Intn(10000))
	for i, day := range models.Weekdays {
		h := models.Hours{Day: day, Open: "0800", Close: "2100"}
		if i >= 5 {
			h.Open, h.Close = "1000", "1800"
		}
		b.Hours = append(b.Hours, h)
	}
	return &b, nil
}

// GetReviews synthesizes up to limit reviews derived only from the id
func (a *Adapter) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	limit = providers.ClampLimit(limit)
	rng := rand.New(rand.NewSource(seedFor(id + "/reviews")))

	n := 3 + rng.Intn(6)
	if n > limit {
		n = limit
	}
	out := make([]models.Review, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Review{
			ID:        fmt.Sprintf("%s_review_%d", id, i),
			Text:      snippets[rng.Intn(len(snippets))],
			Rating:    models.Float64(float64(1 + rng.Intn(5))),
			Author:    authors[rng.Intn(len(authors))],
			CreatedAt: reviewEpoch.AddDate(0, 0, -rng.Intn(365)).Format(time.RFC3339),
			Source:    models.SourceMock,
		})
	}
	return out, nil
}

// GetCategories returns the template categories
func (a *Adapter) GetCategories(ctx context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.Category)
	}
	return out, nil
}

// synthesize rebuilds a record from its id alone
func synthesize(id string) models.Business {
	rng := rand.New(rand.NewSource(seedFor(id)))
	c := cityFromID(id, rng)
	t, ok := templateFromID(id)
	if !ok {
		t = templates[rng.Intn(len(templates))]
	}
	return generate(rand.New(rand.NewSource(seedFor(id))), id, c, t)
}

func generate(rng *rand.Rand, id string, c city, t template) models.Business {
	tips := rng.Intn(500)
	reviews := 5 + rng.Intn(1500)
	return models.Business{
		ID:         id,
		Name:       prefixes[rng.Intn(len(prefixes))] + " " + t.Name,
		Address:    fmt.Sprintf("%d %s", 100+rng.Intn(9900), streets[rng.Intn(len(streets))]),
		City:       c.Name,
		State:      c.State,
		Country:    "US",
		PostalCode: strconv.Itoa(c.ZipBase + rng.Intn(90)),
		Latitude:   models.Float64(c.Lat + (rng.Float64()-0.5)*0.1),
		Longitude:  models.Float64(c.Lng + (rng.Float64()-0.5)*0.1),
		Categories: []models.Category{t.Category},
		Rating:     models.Float64(float64(25+rng.Intn(26)) / 10),
		PriceTier:  models.Int(t.Price),
		Stats: models.Stats{
			TipCount:    models.Int(tips),
			ReviewCount: models.Int(reviews),
		},
		Source: models.SourceMock,
	}
}

// matchTemplates narrows the pool by category id or a query substring; never empty
func matchTemplates(query, category string) []template {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))

	var pool []template
	for _, t := range templates {
		switch {
		case category != "" && t.Category.ID == category:
			pool = append(pool, t)
		case category == "" && query != "" &&
			(strings.Contains(strings.ToLower(t.Name), query) || strings.Contains(strings.ToLower(t.Category.Name), query)):
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		return templates
	}
	return pool
}

func resolveCity(location string) city {
	if lat, lng, ok := providers.ParseLatLng(location); ok {
		return nearestCity(lat, lng)
	}
	loc := strings.ToLower(location)
	for _, c := range cities {
		if strings.Contains(loc, strings.ToLower(c.Name)) {
			return c
		}
	}
	name := strings.TrimSpace(location)
	if name == "" {
		return cities[0]
	}
	// unknown places keep their name with the first city's geography
	c := cities[0]
	c.Name = name
	c.State = ""
	return c
}

func nearestCity(lat, lng float64) city {
	best := cities[0]
	bestDist := -1.0
	for _, c := range cities {
		d := (c.Lat-lat)*(c.Lat-lat) + (c.Lng-lng)*(c.Lng-lng)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// templateFromID recovers the template from the category segment of a mock id
func templateFromID(id string) (template, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 4 || parts[0] != "mock" {
		return template{}, false
	}
	category := parts[len(parts)-2]
	for _, t := range templates {
		if t.Category.ID == category {
			return t, true
		}
	}
	return template{}, false
}

// cityFromID recovers the city from a mock id prefix, or picks one from rng
func cityFromID(id string, rng *rand.Rand) city {
	for _, c := range cities {
		if strings.HasPrefix(id, "mock_"+slug(c.Name)+"_") {
			return c
		}
	}
	return cities[rng.Intn(len(cities))]
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func seedFor(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
