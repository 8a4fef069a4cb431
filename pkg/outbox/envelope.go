package outbox

import (
	"encoding/json"
	"time"
)

// CurrentVersion is the envelope layout Emit writes. The publisher refuses
// rows stamped with anything newer.
const CurrentVersion = 1

// ActorRef identifies what produced the event: a webhook, a backfill run, or
// a named dashboard operator.
type ActorRef struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload_json holds. Attributes are
// copied onto the Pub/Sub message so subscribers can filter by source
// without decoding Data.
type PayloadEnvelope struct {
	Version    int               `json:"version"`
	EventID    string            `json:"eventId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Actor      *ActorRef         `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Data       json.RawMessage   `json:"data"`
}
