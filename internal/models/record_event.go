package models

import (
	"encoding/json"
	"time"
)

const (
	RecordEventCreated           = "created"
	RecordEventEdited            = "edited"
	RecordEventDeleted           = "deleted"
	RecordEventCargoOpsStarted   = "cargo_ops_started"
	RecordEventCargoOpsCompleted = "cargo_ops_completed"
)

// RecordEvent — журнал изменений записи. Пишется в той же транзакции,
// что и само изменение, и затем публикуется воркером в Kafka.
type RecordEvent struct {
	ID           uint64
	EventID      string
	InspectionID uint64
	RecordID     uint64
	Kind         string
	SerialNumber int
	PlateNumber  string
	ActorID      string
	Payload      json.RawMessage
	CreatedAt    time.Time

	PublishedAt   *time.Time
	Attempts      int32
	LastError     *string
	NextAttemptAt time.Time
}
