// Package report is the Report Builder (§4.7): assembles evidence
// dossiers and LLM prompts for clusters whose significance has crossed
// the configured threshold, and parses the LLM's accept/reject verdict.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// maxCombinedContext bounds how much cached context survives into the next
// prompt; only the newest portion is kept (§4.7).
const maxCombinedContext = 4000

// maxSourceComments is the number of top comments quoted in the dossier's
// THREAD SOURCE block.
const maxSourceComments = 15

// jargonHint is a deployment-specific slang term the prompt must name
// verbatim when topic filtering is active (§4.7).
const jargonHint = "Eselmetalle"

// Cluster is the subset of model.InvestigationCluster the builder reads.
type Cluster interface {
	ID() string
	InitialTitle() string
	ActiveThreadCount() int
	ActiveThreadIDs() []string
	BestThread() (id string, score int)
	CachedContext() string
}

// Repository resolves a thread id and its comments for dossier assembly.
type Repository interface {
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error)
}

// BuildReportData returns the textual evidence dossier for a cluster: its
// case id, initial title, active thread count, and the best active
// thread's title plus its top comments.
func BuildReportData(ctx context.Context, repo Repository, c Cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE ID: %s\n", c.ID())
	fmt.Fprintf(&b, "%s\n", c.InitialTitle())
	fmt.Fprintf(&b, "Active Threads: %d\n", c.ActiveThreadCount())

	bestID, _ := c.BestThread()
	if bestID == "" {
		return b.String()
	}

	thread, err := repo.GetThread(ctx, bestID)
	if err != nil || thread == nil {
		return b.String()
	}

	b.WriteString("THREAD SOURCE\n")
	fmt.Fprintf(&b, "Title: %s\n", thread.Title)

	comments, err := repo.GetCommentsForThread(ctx, bestID, maxSourceComments)
	if err != nil {
		return b.String()
	}
	for i, cm := range comments {
		if i >= maxSourceComments {
			break
		}
		fmt.Fprintf(&b, "%s (Score: %d): %s\n", cm.Author, cm.Score, cm.Body)
	}
	return b.String()
}

// BuildCombinedContext produces the LLM input for a cluster given freshly
// assembled report data. The cluster's cached context (if any) is
// left-truncated to the last maxCombinedContext characters and separated
// from the new section by an "=== UPDATE ===" marker.
func BuildCombinedContext(c Cluster, newReportData string) string {
	cached := c.CachedContext()
	if cached == "" {
		return newReportData
	}

	if len(cached) > maxCombinedContext {
		cached = cached[len(cached)-maxCombinedContext:]
	}

	var b strings.Builder
	b.WriteString(cached)
	b.WriteString("\n=== UPDATE ===\n")
	b.WriteString(newReportData)
	return b.String()
}

// BuildHeadlinePrompt composes the prompt sent to the LLM: the rolling
// headline history, the combined context, the topic filter (or an
// explicit "no restriction" notice), and — only when a topic filter is in
// effect — the domain jargon hint the model must recognize.
func BuildHeadlinePrompt(history []model.ReportEntry, context string, showAll bool, topics []string) string {
	var b strings.Builder

	b.WriteString("PRIOR HEADLINES:\n")
	if len(history) == 0 {
		b.WriteString("(none)\n")
	}
	for _, h := range history {
		fmt.Fprintf(&b, "[%s] %s\n", h.Timestamp.Format("15:04"), h.Headline)
	}

	b.WriteString("\nCONTEXT:\n")
	b.WriteString(context)
	b.WriteString("\n\n")

	if showAll || len(topics) == 0 {
		b.WriteString("TOPIC FILTER: No topic restriction\n")
	} else {
		sorted := append([]string(nil), topics...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "TOPIC FILTER: %s\n", strings.Join(sorted, ", "))
		fmt.Fprintf(&b, "Jargon hint: %q may refer to precious metals slang used on this board.\n", jargonHint)
	}

	b.WriteString("\nRespond with a VERDICT: ACCEPT or VERDICT: REJECT line, followed by REPORT: <headline> or REPORT: -1.\n")
	return b.String()
}

// IsAccepted reports whether the LLM's response contains the literal
// acceptance line.
func IsAccepted(response string) bool {
	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) == "VERDICT: ACCEPT" {
			return true
		}
	}
	return false
}

// ExtractHeadline scans response for a "REPORT: {headline}" line. A
// missing line, an empty headline, or the literal sentinel "-1" all
// return "" (§8: extractHeadline("REPORT: -1") == "").
func ExtractHeadline(response string) string {
	const prefix = "REPORT:"
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		if rest == "" || rest == "-1" {
			return ""
		}
		return rest
	}
	return ""
}
