package events

import "time"

// SubmissionEventType names a lifecycle transition of a submission or item.
type SubmissionEventType string

const (
	EventItemSubmitted   SubmissionEventType = "item_submitted"
	EventItemResubmitted SubmissionEventType = "item_resubmitted"
	EventItemWithdrawn   SubmissionEventType = "item_withdrawn"
	EventItemCorrected   SubmissionEventType = "item_corrected"
	EventItemPublished   SubmissionEventType = "item_published"
)

// SubmissionEvent is the payload published to the event bus.
type SubmissionEvent struct {
	ID            string              `json:"id"`
	Type          SubmissionEventType `json:"type"`
	ItemID        uint                `json:"item_id"`
	ItemKind      string              `json:"item_kind"`
	SubmissionID  *uint               `json:"submission_id,omitempty"`
	AnonymousID   string              `json:"anonymous_id,omitempty"`
	ActorID       uint                `json:"actor_id"`
	Recipients    int                 `json:"recipients"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Source        string              `json:"source"`
	Version       string              `json:"version"`
	Timestamp     time.Time           `json:"timestamp"`
}
