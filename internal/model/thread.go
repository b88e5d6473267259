// Package model holds the data types shared across the monitoring
// pipeline: immutable scrape snapshots, and the mutable in-memory
// investigation clusters built from them.
package model

// Thread is an immutable snapshot of a forum post. New snapshots with the
// same ID supersede old ones by id; Thread values themselves are never
// mutated in place.
type Thread struct {
	ID              string
	Board           string
	Title           string
	Author          string
	Text            string
	CreatedUTC      int64
	Permalink       string
	Score           int
	UpvoteRatio     float64
	CommentCount    int
	LastActivityUTC int64
	ImageURL        string
}

// HasImage reports whether this thread snapshot carries an image.
func (t *Thread) HasImage() bool {
	return t.ImageURL != ""
}
