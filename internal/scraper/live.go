package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
	"github.com/bsommerfeld/wsbg-terminal-sub002/retry"
)

const (
	scrapeTimeout = 30 * time.Second
	userAgent     = "passive-monitor/1.0"
)

// LiveScraper talks to a real Reddit-style JSON listing API. Transient
// errors are retried with bounded backoff (§4.3/§7); a per-host token
// bucket keeps requests within the target's rate limit.
type LiveScraper struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	repo    Repository
	logger  logging.Logger
}

// NewLiveScraper constructs a LiveScraper. requestsPerSecond bounds the
// per-host request rate; burst allows short spikes above that rate.
func NewLiveScraper(baseURL string, requestsPerSecond float64, burst int, repo Repository, logger logging.Logger) *LiveScraper {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &LiveScraper{
		baseURL: baseURL,
		client:  &http.Client{Timeout: scrapeTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		repo:    repo,
		logger:  logger,
	}
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data rawPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type rawPost struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Selftext     string  `json:"selftext"`
	Body         string  `json:"body"`
	CreatedUTC   float64 `json:"created_utc"`
	Permalink    string  `json:"permalink"`
	Score        int     `json:"score"`
	UpvoteRatio  float64 `json:"upvote_ratio"`
	NumComments  int     `json:"num_comments"`
	URL          string  `json:"url"`
}

// ScanSubreddit fetches the "new" listing for board and writes every listed
// thread through the repository.
func (l *LiveScraper) ScanSubreddit(ctx context.Context, board string) (ScrapeStats, error) {
	return l.scanListing(ctx, board, "new")
}

// ScanSubredditHot fetches the "hot" listing for board.
func (l *LiveScraper) ScanSubredditHot(ctx context.Context, board string) (ScrapeStats, error) {
	return l.scanListing(ctx, board, "hot")
}

func (l *LiveScraper) scanListing(ctx context.Context, board, sort string) (ScrapeStats, error) {
	stats := NewScrapeStats()
	if board == "" {
		return stats, nil
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s.json", l.baseURL, url.PathEscape(board), sort)
	listing, err := l.fetchListing(ctx, endpoint)
	if err != nil {
		return stats, err
	}

	var threads []*model.Thread
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.ID == "" {
			continue
		}
		t := postToThread(board, p)
		threads = append(threads, t)
		stats.Visit(t.ID)
		stats.NewThreads++
		stats.NewUpvotes += t.Score
		stats.NewComments += t.CommentCount
	}

	for _, t := range threads {
		l.repo.SaveThread(ctx, t)
	}
	return stats, nil
}

// UpdateThreadsBatch refreshes a known set of thread ids by refetching
// their permalinks. Permanent per-item errors (malformed payload) are
// logged and skipped rather than aborting the whole batch (§7).
func (l *LiveScraper) UpdateThreadsBatch(ctx context.Context, threadIDs []string) (ScrapeStats, error) {
	stats := NewScrapeStats()
	if len(threadIDs) == 0 {
		return stats, nil
	}

	for _, id := range threadIDs {
		endpoint := fmt.Sprintf("%s/by_id/t3_%s.json", l.baseURL, id)
		listing, err := l.fetchListing(ctx, endpoint)
		if err != nil {
			l.logger.Warn("thread refresh failed", "thread_id", id, "error", err)
			continue
		}
		if len(listing.Data.Children) == 0 {
			continue
		}
		p := listing.Data.Children[0].Data
		t := postToThread("", p)
		l.repo.SaveThread(ctx, t)
		stats.Visit(t.ID)
		stats.NewUpvotes += t.Score
		stats.NewComments += t.CommentCount
	}
	return stats, nil
}

// FetchThreadContext retrieves the title, selftext, optional image and top
// comments for a permalink as a single flattened analysis context.
func (l *LiveScraper) FetchThreadContext(ctx context.Context, permalink string) (ThreadAnalysisContext, error) {
	if permalink == "" {
		return ThreadAnalysisContext{}, nil
	}
	endpoint := l.baseURL + NormalizePermalink(permalink) + ".json"
	var raw []json.RawMessage
	if err := l.getJSON(ctx, endpoint, &raw); err != nil {
		return ThreadAnalysisContext{}, err
	}
	if len(raw) == 0 {
		return ThreadAnalysisContext{}, fmt.Errorf("empty thread context response")
	}

	var postListing listingResponse
	if err := json.Unmarshal(raw[0], &postListing); err != nil {
		return ThreadAnalysisContext{}, fmt.Errorf("decoding thread post: %w", err)
	}
	if len(postListing.Data.Children) == 0 {
		return ThreadAnalysisContext{}, fmt.Errorf("thread context has no post")
	}
	post := postListing.Data.Children[0].Data

	actx := ThreadAnalysisContext{
		Title:    UnescapeHTML(post.Title),
		SelfText: UnescapeHTML(post.Selftext),
	}
	if imageURL := StripTrailingPunctuation(post.URL); IsImageURL(imageURL) {
		actx.ImageURL = imageURL
	}

	if len(raw) > 1 {
		var commentListing listingResponse
		if err := json.Unmarshal(raw[1], &commentListing); err == nil {
			for _, child := range commentListing.Data.Children {
				c := child.Data
				if !IsValidAuthor(c.Author) {
					continue
				}
				actx.CommentLines = append(actx.CommentLines, fmt.Sprintf("%s: %s", c.Author, UnescapeHTML(c.Body)))
			}
		}
	}
	return actx, nil
}

func postToThread(board string, p rawPost) *model.Thread {
	imageURL := StripTrailingPunctuation(p.URL)
	if !IsImageURL(imageURL) {
		imageURL = ""
	}
	return &model.Thread{
		ID:           p.ID,
		Board:        board,
		Title:        UnescapeHTML(p.Title),
		Author:       p.Author,
		Text:         UnescapeHTML(p.Selftext),
		Permalink:    NormalizePermalink(p.Permalink),
		CreatedUTC:   int64(p.CreatedUTC),
		Score:        p.Score,
		UpvoteRatio:  p.UpvoteRatio,
		CommentCount: p.NumComments,
		ImageURL:     imageURL,
	}
}

func (l *LiveScraper) fetchListing(ctx context.Context, endpoint string) (listingResponse, error) {
	var listing listingResponse
	err := l.getJSON(ctx, endpoint, &listing)
	return listing, err
}

// getJSON performs a rate-limited, retried GET and decodes the JSON body
// into out. Transport errors and 429/503/504 responses are retried with
// jitter, for at most 3 attempts in all; any other non-2xx status is
// treated as permanent (§4.3/§7).
func (l *LiveScraper) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	return retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := l.client.Do(req)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			apiErr := &scrapeError{statusCode: resp.StatusCode, body: string(body)}
			if retry.ShouldRetry(resp.StatusCode) {
				return retry.NewRecoverableError(apiErr)
			}
			return apiErr
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}, retry.WithMaxRetries(3), retry.WithBaseWait(200*time.Millisecond))
}

type scrapeError struct {
	statusCode int
	body       string
}

func (e *scrapeError) Error() string {
	return fmt.Sprintf("scrape request failed: status %d: %s", e.statusCode, e.body)
}

func (e *scrapeError) StatusCode() int {
	return e.statusCode
}
