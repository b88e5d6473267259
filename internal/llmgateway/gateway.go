package llmgateway

import "context"

// Stream delivers a token-streamed completion. Cancel stops further token
// delivery and releases the underlying HTTP call (§4.4).
type Stream interface {
	// Next blocks until a token is available, the stream completes, or an
	// error occurs. It returns false once the stream has nothing left to
	// deliver; callers should check Err afterward.
	Next() bool
	// Token returns the text delivered by the most recent Next call.
	Token() string
	// Err returns the first error encountered, if any.
	Err() error
	// FullText returns the concatenation of every token delivered so far.
	// Once the stream completes, this equals the full response (§8:
	// fullText(onComplete) == concat(onToken[*])).
	FullText() string
	// Cancel stops delivery and releases resources. Safe to call more than
	// once and safe to call after the stream has completed naturally.
	Cancel()
}

// Gateway is the uniform capability set over the local inference server.
type Gateway interface {
	// Chat streams a response to message within conversation scope
	// scopeID. Scopes isolate a sliding window of the last 20 messages.
	Chat(ctx context.Context, scopeID, message string) (Stream, error)
	// Translate streams a translation of text from sourceLang to
	// targetLang (ISO-639-1-style codes).
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Stream, error)
	// Vision fetches imageURL, validates and recompresses it, and returns
	// the model's description. On any failure it returns (sentinel, nil)
	// rather than an error, per §4.4: the caller's prompt still runs, just
	// with a value telling it not to guess.
	Vision(ctx context.Context, imageURL string) (string, error)
	// Embed returns a fixed-dimension embedding vector for text.
	Embed(ctx context.Context, text string) ([]float64, error)
}
