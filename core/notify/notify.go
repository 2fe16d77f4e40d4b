package notify

import (
	"log"

	"endorsegraph/types/ids"
)

// Event is a notification emitted after a submission commits. Observers that
// replay the event stream in order can reconstruct the full ledger, so
// delivery is synchronous and in append order, exactly one event per
// appended record.
type Event interface {
	EventType() string
}

// Scored is emitted once per stored ScoreRecord.
type Scored struct {
	Timestamp  uint64      `json:"timestamp"`
	From       ids.Address `json:"from"`
	To         ids.Address `json:"to"`
	TopicID    uint64      `json:"topicId"`
	Score      int8        `json:"score"`
	Confidence uint8       `json:"confidence"`
}

func (Scored) EventType() string { return "Scored" }

// NicknameChanged is emitted once per accepted nickname claim.
type NicknameChanged struct {
	Account  ids.Address `json:"account"`
	Nickname string      `json:"nickname"`
}

func (NicknameChanged) EventType() string { return "NicknameChanged" }

// MetadataUpdated is emitted when the ledger's metadata URI changes.
type MetadataUpdated struct {
	NewValue string `json:"newValue"`
	OldValue string `json:"oldValue"`
}

func (MetadataUpdated) EventType() string { return "MetadataUpdated" }

// TopicCreated is emitted when a topic record is registered.
type TopicCreated struct {
	TopicID uint64      `json:"topicId"`
	Creator ids.Address `json:"creator"`
	Name    string      `json:"name"`
}

func (TopicCreated) EventType() string { return "TopicCreated" }

// TopicFinalized is emitted when a topic record is finalized.
type TopicFinalized struct {
	TopicID uint64 `json:"topicId"`
}

func (TopicFinalized) EventType() string { return "TopicFinalized" }

// Bus fans events out to subscribers synchronously, on the goroutine of the
// emitting submission. Subscribe before submissions start; the subscriber
// list is not guarded against concurrent mutation.
type Bus struct {
	subs   []func(Event)
	logAll bool
}

func NewBus() *Bus {
	return &Bus{}
}

// NewLoggingBus also prints every event through the standard logger, handy
// for dev nodes.
func NewLoggingBus() *Bus {
	return &Bus{logAll: true}
}

func (b *Bus) Subscribe(fn func(Event)) {
	b.subs = append(b.subs, fn)
}

func (b *Bus) Emit(e Event) {
	if b.logAll {
		log.Printf("[NOTIFY] %s: %+v", e.EventType(), e)
	}
	for _, fn := range b.subs {
		fn(e)
	}
}
