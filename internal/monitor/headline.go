package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/report"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/scraper"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/significance"
)

// checkSignificance scores every unreported live cluster and starts
// headline generation for any that cross the configured threshold (§4.8).
func (m *Monitor) checkSignificance(ctx context.Context) {
	if !m.cfg.Headlines.Enabled {
		return
	}

	threshold := m.cfg.Reddit.SignificanceThreshold
	now := time.Now()
	for _, c := range m.cluster.Snapshot() {
		if c.Reported() {
			continue
		}
		score := significance.Compute(c, m.weights, now)
		if !score.MeetsThreshold(threshold) {
			continue
		}
		m.generateHeadline(ctx, c)
	}
}

// generateHeadline builds the dossier and prompt for c, streams the LLM's
// response over the event bus, and accepts the headline on VERDICT:
// ACCEPT (§4.7, §4.8).
func (m *Monitor) generateHeadline(ctx context.Context, c *model.InvestigationCluster) {
	data := report.BuildReportData(ctx, m.repo, c)
	combined := report.BuildCombinedContext(c, data)
	prompt := report.BuildHeadlinePrompt(c.History(), combined, m.cfg.Headlines.ShowAll, m.cfg.Headlines.Topics)

	response, ok := m.streamChatToBus(ctx, "cluster:"+c.ID(), c.ID(), prompt)
	if !ok {
		return
	}

	if !report.IsAccepted(response) {
		return
	}
	headline := report.ExtractHeadline(response)
	if headline == "" {
		return
	}

	c.MarkReported(headline, time.Now())
	c.CacheContext(combined)
}

// streamChatToBus drives one Chat call to completion, publishing the
// AgentStatusEvent/AgentStreamStart/AgentToken/AgentStreamEnd sequence
// required by §4.8 ("the first token must be preceded by a status-clear").
// Returns the full response text and whether the stream completed without
// error.
func (m *Monitor) streamChatToBus(ctx context.Context, scopeID, source, prompt string) (string, bool) {
	stream, err := m.gateway.Chat(ctx, scopeID, prompt)
	if err != nil {
		m.bus.Publish(eventbus.LogEvent{
			Message:  fmt.Sprintf("headline generation failed for %s: %v", source, err),
			Severity: eventbus.SeverityWarn,
		})
		return "", false
	}

	m.bus.Publish(eventbus.AgentStatusEvent{Status: ""})
	m.bus.Publish(eventbus.AgentStreamStartEvent{Source: source})
	for stream.Next() {
		m.bus.Publish(eventbus.AgentTokenEvent{Token: stream.Token()})
	}
	if err := stream.Err(); err != nil {
		m.bus.Publish(eventbus.LogEvent{
			Message:  fmt.Sprintf("headline stream for %s errored: %v", source, err),
			Severity: eventbus.SeverityWarn,
		})
		return "", false
	}

	full := stream.FullText()
	m.bus.Publish(eventbus.AgentStreamEndEvent{FullText: full})
	return full, true
}

// analysisRefPrefix and analysisIDPrefix address a stored investigation by
// its opaque id (§4.8: "analyze-ref:ID:{8-char id}").
const (
	analysisRefPrefix = "analyze-ref:"
	analysisIDPrefix  = "ID:"
)

// handleTriggerAnalysis services a one-shot TriggerAgentAnalysisEvent.
// Prompts address a stored investigation either by its opaque id
// ("ID:{8-char id}") or by the permalink of any thread still live in one
// of its clusters (§4.8); free-form prompts without the analyze-ref prefix
// are outside this component's scope and are silently ignored.
func (m *Monitor) handleTriggerAnalysis(e eventbus.TriggerAgentAnalysisEvent) {
	ref, ok := strings.CutPrefix(e.Prompt, analysisRefPrefix)
	if !ok {
		return
	}

	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return
	}

	var c *model.InvestigationCluster
	if id, ok := strings.CutPrefix(ref, analysisIDPrefix); ok {
		c = m.cluster.Get(id)
	} else {
		c = m.findClusterByPermalink(runCtx, ref)
	}
	if c == nil {
		m.bus.Publish(eventbus.LogEvent{
			Message:  fmt.Sprintf("analysis request for unknown or expired investigation %q", ref),
			Severity: eventbus.SeverityWarn,
		})
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		combinedContext, ok := m.getInvestigationContextOrRebuild(runCtx, c)
		if !ok {
			return
		}
		prompt := report.BuildHeadlinePrompt(c.History(), combinedContext, true, nil)
		response, ok := m.streamChatToBus(runCtx, "analysis:"+c.ID(), c.ID(), prompt)
		if !ok || !report.IsAccepted(response) {
			return
		}
		if headline := report.ExtractHeadline(response); headline != "" {
			c.MarkReported(headline, time.Now())
		}
	}()
}

// findClusterByPermalink scans every live cluster's active threads for one
// whose permalink matches, normalizing both sides so a prompt doesn't need
// to match the stored form's leading slash or trailing-slash exactly.
func (m *Monitor) findClusterByPermalink(ctx context.Context, permalink string) *model.InvestigationCluster {
	target := scraper.NormalizePermalink(permalink)
	for _, c := range m.cluster.Snapshot() {
		for _, id := range c.ActiveThreadIDs() {
			thread, err := m.repo.GetThread(ctx, id)
			if err != nil || thread == nil {
				continue
			}
			if scraper.NormalizePermalink(thread.Permalink) == target {
				return c
			}
		}
	}
	return nil
}

func (m *Monitor) getInvestigationContextOrRebuild(ctx context.Context, c *model.InvestigationCluster) (string, bool) {
	if cached := c.CachedContext(); cached != "" {
		return cached, true
	}
	data := report.BuildReportData(ctx, m.repo, c)
	if data == "" {
		return "", false
	}
	return report.BuildCombinedContext(c, data), true
}
