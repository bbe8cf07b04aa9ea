package notify

import (
	"encoding/json"
	"time"
)

// Collection names carried by change messages.
const (
	CollectionExpenses = "expenses"
	CollectionBudget   = "budget"
	CollectionProjects = "projects"
)

// ChangeMessage announces that a collection of a project changed. It is
// intentionally light: subscribers reload the full snapshot from their
// store rather than applying deltas.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	ProjectID  string    `json:"project_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change announcement for one collection.
func NewChangeMessage(collection, projectID string) *ChangeMessage {
	return &ChangeMessage{
		Collection: collection,
		ProjectID:  projectID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
