package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// wireFrame is the inbound form of Frame with the payload left raw.
type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// idPayload lists the id fields the order service has used over time.
type idPayload struct {
	EntityID string `json:"entityId"`
	OrderID  string `json:"orderId"`
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
}

func (p idPayload) first() string {
	for _, s := range []string{p.EntityID, p.OrderID, p.ID, p.MongoID} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Decode parses one transport frame into an order event.
// Frames for events other than the configured names return ErrUnknownEvent.
func Decode(data []byte, names WireNames) (Event, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}

	switch f.Event {
	case names.Created:
		id, err := ExtractOrderID(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return OrderCreated{OrderID: id}, nil

	case names.Updated:
		id, err := ExtractOrderID(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return OrderUpdated{OrderID: id}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
}

// ExtractOrderID accepts either a bare JSON string or an object carrying an id field.
func ExtractOrderID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrMissingOrderID
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("unmarshal id string: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", ErrMissingOrderID
		}
		return s, nil
	}

	// Numeric ids are accepted as their decimal text.
	if raw[0] != '{' {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), nil
		}
		return "", ErrMissingOrderID
	}

	var p idPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("unmarshal id object: %w", err)
	}
	if id := p.first(); id != "" {
		return id, nil
	}
	return "", ErrMissingOrderID
}

// Encode builds an outbound frame.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: payload})
}
