package models

// Review is the canonical review or tip record.
// Rating is nil for providers whose reviews carry no score (Foursquare tips).
type Review struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Rating      *float64 `json:"rating"`
	Author      string   `json:"author"`
	AuthorPhoto *string  `json:"author_photo"`
	CreatedAt   string   `json:"created_at,omitempty"`
	Source      string   `json:"source"`
}
