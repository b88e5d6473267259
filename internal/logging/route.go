package logging

// RouteBySeverity dispatches message to logger at the level named by
// severity. Unrecognized or empty severity strings fall through to Info,
// matching the event catalog's own Severity default (§4.0: "LogEvent
// payloads posted to the event bus are additionally routed through this
// logger at the matching severity"). A nil logger is a no-op rather than a
// panic, so callers that haven't wired a logger yet can still publish.
func RouteBySeverity(logger Logger, severity, message string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	switch severity {
	case "ERROR":
		logger.Error(message, keysAndValues...)
	case "WARN":
		logger.Warn(message, keysAndValues...)
	default:
		logger.Info(message, keysAndValues...)
	}
}
