package model

// Comment is an immutable snapshot of a single comment within a thread's
// comment tree. ParentID equals ThreadID for a root-level comment.
type Comment struct {
	ID              string
	ThreadID        string
	ParentID        string
	Author          string
	Body            string
	Score           int
	CreatedUTC      int64
	FetchedAt       int64
	LastUpdatedUTC  int64
	ImageURLs       []string
}

// NewComment constructs a Comment, substituting an empty slice for a nil
// ImageURLs input so the field is always non-nil.
func NewComment(id, threadID, parentID, author, body string, score int, createdUTC, fetchedAt, lastUpdatedUTC int64, imageURLs []string) *Comment {
	if imageURLs == nil {
		imageURLs = []string{}
	}
	return &Comment{
		ID:             id,
		ThreadID:       threadID,
		ParentID:       parentID,
		Author:         author,
		Body:           body,
		Score:          score,
		CreatedUTC:     createdUTC,
		FetchedAt:      fetchedAt,
		LastUpdatedUTC: lastUpdatedUTC,
		ImageURLs:      imageURLs,
	}
}

// IsRoot reports whether this comment is attached directly to the thread
// rather than to another comment.
func (c *Comment) IsRoot() bool {
	return c.ParentID == c.ThreadID
}
