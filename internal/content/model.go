package content

import "time"

// Kind identifies which community collection a source item came from.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// SourceItem is one community post or comment as read from the platform's
// content tables. The tracker treats these tables as read-only; the main
// application owns their lifecycle.
type SourceItem struct {
	ID             string
	Kind           Kind
	Content        string
	Location       string // location attached to the item itself, may be empty
	AuthorLocation string // author's profile location, fallback when Location is empty
	CreatedAt      time.Time
}

// EffectiveLocation prefers the item's own location and falls back to the
// author's profile location.
func (s SourceItem) EffectiveLocation() string {
	if s.Location != "" {
		return s.Location
	}
	return s.AuthorLocation
}
