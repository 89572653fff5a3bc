package notify

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/models"
)

// LogNotifier writes alerts to the structured log. It is the default
// outbound channel; webhook and mail senders plug in behind the same
// interface.
type LogNotifier struct {
	logger arbor.ILogger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger arbor.ILogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Emit logs the alert at a level matching its severity. Never blocks.
func (n *LogNotifier) Emit(alert *models.Alert) {
	event := n.logger.Warn()
	if alert.Severity == models.SeverityCritical {
		event = n.logger.Error()
	}

	event.
		Str("alert_id", alert.ID).
		Str("site_id", alert.SiteID).
		Str("kind", string(alert.Kind)).
		Str("severity", string(alert.Severity)).
		Str("title", alert.Title).
		Float64("confidence", alert.Confidence).
		Msg("ALERT " + alert.Title)
}

// Fanout duplicates alerts across multiple notifiers
type Fanout []interface{ Emit(*models.Alert) }

// Emit delivers the alert to every registered notifier
func (f Fanout) Emit(alert *models.Alert) {
	for _, n := range f {
		n.Emit(alert)
	}
}
