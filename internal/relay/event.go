package relay

import (
	"encoding/json"

	"github.com/sigmcp/signal-mcp-go/internal/errors"
)

// notification is one decoded line from the daemon's notification stream.
type notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Event is one receive-class notification that carries a message body.
// Ownership transfers from the listener to the queue to whichever waiter
// claims it.
type Event struct {
	Envelope Envelope `json:"envelope"`
	Account  string   `json:"account"`
}

// Envelope is the daemon's per-message wrapper.
type Envelope struct {
	Source       string       `json:"source"`
	SourceNumber string       `json:"sourceNumber"`
	SourceUUID   string       `json:"sourceUuid"`
	SourceName   string       `json:"sourceName"`
	Timestamp    int64        `json:"timestamp"`
	DataMessage  *DataMessage `json:"dataMessage"`
}

// DataMessage is the payload of a data envelope.
type DataMessage struct {
	Message   string     `json:"message"`
	GroupInfo *GroupInfo `json:"groupInfo"`
}

// GroupInfo identifies the group a message was sent in, if any.
type GroupInfo struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

// Sender returns the sender's phone number, falling back to the stable
// UUID when no number is present.
func (e *Event) Sender() string {
	if e.Envelope.Source != "" {
		return e.Envelope.Source
	}

	if e.Envelope.SourceNumber != "" {
		return e.Envelope.SourceNumber
	}

	return e.Envelope.SourceUUID
}

// Body returns the message text, or "" when the envelope has none.
func (e *Event) Body() string {
	if e.Envelope.DataMessage == nil {
		return ""
	}

	return e.Envelope.DataMessage.Message
}

// GroupName returns the display name of the group the message was sent in,
// or "" for direct messages.
func (e *Event) GroupName() string {
	if e.Envelope.DataMessage == nil || e.Envelope.DataMessage.GroupInfo == nil {
		return ""
	}

	return e.Envelope.DataMessage.GroupInfo.Name
}

// Predicate filters events by sender identity. A nil Predicate matches
// anything.
type Predicate func(*Event) bool

// decodeEvent classifies one raw line from the notification stream.
//
// It returns a non-nil Event only for "receive" notifications that carry a
// non-empty message body. Keepalives, delivery receipts, and empty
// envelopes decode to (nil, nil). A line that is not valid JSON returns
// DecodeError.
func decodeEvent(line []byte) (*Event, error) {
	var n notification
	if err := json.Unmarshal(line, &n); err != nil {
		return nil, &errors.DecodeError{RawLine: string(line), Err: err}
	}

	if n.Method != "receive" || len(n.Params) == 0 {
		return nil, nil
	}

	var ev Event
	if err := json.Unmarshal(n.Params, &ev); err != nil {
		return nil, &errors.DecodeError{RawLine: string(line), Err: err}
	}

	if ev.Body() == "" {
		return nil, nil
	}

	return &ev, nil
}
