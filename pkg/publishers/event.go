package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

// Event is the payload published downstream after a successful merge.
type Event struct {
	SourceID    string               `json:"source_id"`
	SourceName  string               `json:"source_name"`
	Date        domain.Day           `json:"date"`
	Accepted    int                  `json:"accepted"`
	Rejected    int                  `json:"rejected"`
	Items       []domain.ContentItem `json:"items"`
	CollectedAt time.Time            `json:"collected_at"`
}

// NewEvent constructs an Event for one source's merge outcome.
func NewEvent(sourceID, sourceName string, date domain.Day, accepted, rejected int, items []domain.ContentItem) Event {
	return Event{
		SourceID:    sourceID,
		SourceName:  sourceName,
		Date:        date,
		Accepted:    accepted,
		Rejected:    rejected,
		Items:       items,
		CollectedAt: time.Now().UTC(),
	}
}
