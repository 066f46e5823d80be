package events

// Topic constants for domain events emitted by the order flow.
const (
	TopicDraftSubmitted = "order.draft_submitted"
	TopicDraftHandedOff = "order.draft_handed_off"
	TopicDraftRejected  = "order.draft_rejected"
)

// DefaultTopics returns the topics the worker knows how to process.
func DefaultTopics() []string {
	return []string{
		TopicDraftSubmitted,
		TopicDraftHandedOff,
		TopicDraftRejected,
	}
}
