package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
)

// changeMessage is the JSON body of a change published to JetStream
type changeMessage struct {
	EventID   string          `json:"eventId"`
	Table     datastore.Table `json:"table"`
	Op        datastore.Op    `json:"op"`
	RecordID  uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
}

func encodeChange(eventID uuid.UUID, ev datastore.ChangeEvent, now time.Time) ([]byte, error) {
	data, err := json.Marshal(changeMessage{
		EventID:   eventID.String(),
		Table:     ev.Table,
		Op:        ev.Op,
		RecordID:  ev.RecordID,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal change: %w", err)
	}
	return data, nil
}

func decodeChange(data []byte) (datastore.ChangeEvent, error) {
	var msg changeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return datastore.ChangeEvent{}, fmt.Errorf("unmarshal change: %w", err)
	}
	if msg.Table == "" {
		return datastore.ChangeEvent{}, fmt.Errorf("change message missing table")
	}
	switch msg.Op {
	case datastore.OpInsert, datastore.OpUpdate, datastore.OpDelete, datastore.OpResync:
	default:
		return datastore.ChangeEvent{}, fmt.Errorf("unknown change op %q", msg.Op)
	}
	return datastore.ChangeEvent{Table: msg.Table, Op: msg.Op, RecordID: msg.RecordID}, nil
}
