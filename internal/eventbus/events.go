package eventbus

// Event is the marker interface implemented by every event posted on the
// bus. Concrete event types are plain structs; subscribers may register for
// a concrete type or for any interface the event satisfies (its
// "ancestor"), per §4.8.
type Event interface {
	// EventType returns a short, stable name for the event, used for the
	// AgentToken debug-log filter and for diagnostics.
	EventType() string
}

// Severity classifies a LogEvent.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// LogEvent carries a log line destined for both the injected Logger and any
// UI subscriber. Severity defaults to INFO when the zero value is posted
// via NewLogEvent.
type LogEvent struct {
	Message  string
	Severity Severity
}

func (LogEvent) EventType() string { return "LogEvent" }

// NewLogEvent builds a LogEvent defaulting Severity to INFO.
func NewLogEvent(message string) LogEvent {
	return LogEvent{Message: message, Severity: SeverityInfo}
}

// TriggerAgentAnalysisEvent requests a one-shot analysis. Prompts prefixed
// with "analyze-ref:" address a stored investigation by its "ID:{8-char
// id}" form or by permalink (§4.8).
type TriggerAgentAnalysisEvent struct {
	Prompt string
}

func (TriggerAgentAnalysisEvent) EventType() string { return "TriggerAgentAnalysisEvent" }

// PowerModeChangedEvent notifies the LLM gateway to reinitialize under a
// new power-mode setting.
type PowerModeChangedEvent struct {
	PowerMode bool
}

func (PowerModeChangedEvent) EventType() string { return "PowerModeChangedEvent" }

// LanguageChangedEvent notifies the i18n layer / gateway of a language
// change.
type LanguageChangedEvent struct {
	Language string
}

func (LanguageChangedEvent) EventType() string { return "LanguageChangedEvent" }

// AgentStreamEvent is implemented by the four streaming UI-contract events,
// letting a subscriber register once for "any streaming activity" (an
// ancestor registration) instead of each concrete type.
type AgentStreamEvent interface {
	Event
	agentStream()
}

// AgentStreamStartEvent opens a token stream. The first token delivered on
// this stream must be preceded by an AgentStatusEvent clearing the status.
type AgentStreamStartEvent struct {
	Source   string
	CSSClass string
}

func (AgentStreamStartEvent) EventType() string { return "AgentStreamStartEvent" }
func (AgentStreamStartEvent) agentStream()       {}

// AgentTokenEvent carries one token of an in-progress stream. This is the
// high-frequency event the bus omits from its own debug log.
type AgentTokenEvent struct {
	Token string
}

func (AgentTokenEvent) EventType() string { return "AgentTokenEvent" }
func (AgentTokenEvent) agentStream()       {}

// AgentStreamEndEvent closes a token stream with the full accumulated text.
type AgentStreamEndEvent struct {
	FullText string
}

func (AgentStreamEndEvent) EventType() string { return "AgentStreamEndEvent" }
func (AgentStreamEndEvent) agentStream()       {}

// AgentStatusEvent reports a status-line change (e.g. "thinking...", "").
type AgentStatusEvent struct {
	Status string
}

func (AgentStatusEvent) EventType() string { return "AgentStatusEvent" }
func (AgentStatusEvent) agentStream()       {}

// SearchEvent, SearchNextEvent, RedditSearchResultsEvent,
// ToggleRedditPanelEvent, and ClearTerminalEvent are UI-side events; the
// core carries them opaquely without inspecting their content.
type SearchEvent struct{ Query string }

func (SearchEvent) EventType() string { return "SearchEvent" }

type SearchNextEvent struct{}

func (SearchNextEvent) EventType() string { return "SearchNextEvent" }

type RedditSearchResultsEvent struct{ HasResults bool }

func (RedditSearchResultsEvent) EventType() string { return "RedditSearchResultsEvent" }

type ToggleRedditPanelEvent struct{ Visible bool }

func (ToggleRedditPanelEvent) EventType() string { return "ToggleRedditPanelEvent" }

type ClearTerminalEvent struct{}

func (ClearTerminalEvent) EventType() string { return "ClearTerminalEvent" }
