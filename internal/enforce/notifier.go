package enforce

import "github.com/rs/zerolog"

// LogNotifier writes notifications to the log. It is the default
// delivery channel; browser clients poll the limit status through the
// API and surface their own notifications.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs the notification
func (n *LogNotifier) Notify(title, message string) {
	n.logger.Warn().
		Str("title", title).
		Str("message", message).
		Msg("Limit notification")
}
