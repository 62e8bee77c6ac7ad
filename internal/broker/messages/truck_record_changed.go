package messages

import (
	"encoding/json"
	"time"
)

// TruckRecordChanged публикуется воркером outbox для каждой записи журнала.
type TruckRecordChanged struct {
	EventID      string    `json:"event_id"`
	InspectionID uint64    `json:"inspection_id"`
	RecordID     uint64    `json:"record_id"`
	Kind         string    `json:"kind"`
	SerialNumber int       `json:"serial_number"`
	PlateNumber  string    `json:"plate_number"`
	ActorID      string    `json:"actor_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`

	Payload json.RawMessage `json:"payload,omitempty"`
}
