// Package submission hands confirmed carts to the order worker over asynq.
package submission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/backend-bakery/internal/pricing"
)

// TaskTypeSubmit is the asynq task type carrying a checkout submission.
const TaskTypeSubmit = "order:submit"

// Entry is one submitted line item in cart order.
type Entry struct {
	ProductID          string         `json:"productId"`
	Quantity           int            `json:"quantity"`
	SelectedToppingIDs []string       `json:"selectedToppingIds,omitempty"`
	Distribution       map[string]int `json:"distribution,omitempty"`
}

// Payload is the JSON body of an order:submit task.
type Payload struct {
	SubmissionID string          `json:"submissionId"`
	SessionID    string          `json:"sessionId"`
	SubmittedAt  time.Time       `json:"submittedAt"`
	Entries      []Entry         `json:"entries"`
	Pricing      pricing.Summary `json:"pricing"`
}

// Encode marshals the payload.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses and sanity-checks a task payload.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode submission: %w", err)
	}
	if p.SessionID == "" {
		return Payload{}, fmt.Errorf("decode submission: missing session id")
	}
	if len(p.Entries) == 0 {
		return Payload{}, fmt.Errorf("decode submission: no entries")
	}
	return p, nil
}
