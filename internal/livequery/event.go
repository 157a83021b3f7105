package livequery

import (
	"encoding/json"
	"fmt"

	"github.com/syntrixbase/livequery/pkg/model"
)

// EventKind discriminates the single active case of an Event.
type EventKind int

const (
	EventCount EventKind = iota + 1
	EventExhausted
	EventData
	EventDeleteItem
)

func (k EventKind) String() string {
	switch k {
	case EventCount:
		return "count"
	case EventExhausted:
		return "exhausted"
	case EventData:
		return "data"
	case EventDeleteItem:
		return "deleteItem"
	default:
		return "unknown"
	}
}

// Event is one entry of a subscription's output stream. Only the field
// belonging to Kind is meaningful.
type Event struct {
	Kind      EventKind
	Count     int
	Exhausted bool
	Data      []model.Document
	Item      model.Document
}

func CountEvent(n int) Event {
	return Event{Kind: EventCount, Count: n}
}

func ExhaustedEvent(exhausted bool) Event {
	return Event{Kind: EventExhausted, Exhausted: exhausted}
}

func DataEvent(items ...model.Document) Event {
	return Event{Kind: EventData, Data: items}
}

func DeleteEvent(item model.Document) Event {
	return Event{Kind: EventDeleteItem, Item: item}
}

func (e Event) String() string {
	switch e.Kind {
	case EventCount:
		return fmt.Sprintf("{count:%d}", e.Count)
	case EventExhausted:
		return fmt.Sprintf("{exhausted:%v}", e.Exhausted)
	case EventData:
		return fmt.Sprintf("{data:%d items}", len(e.Data))
	case EventDeleteItem:
		return fmt.Sprintf("{deleteItem:%s}", e.Item.GetID())
	default:
		return "{}"
	}
}

// MarshalJSON encodes the event as an object with exactly one key.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventCount:
		return json.Marshal(struct {
			Count int `json:"count"`
		}{e.Count})
	case EventExhausted:
		return json.Marshal(struct {
			Exhausted bool `json:"exhausted"`
		}{e.Exhausted})
	case EventData:
		data := e.Data
		if data == nil {
			data = []model.Document{}
		}
		return json.Marshal(struct {
			Data []model.Document `json:"data"`
		}{data})
	case EventDeleteItem:
		return json.Marshal(struct {
			DeleteItem model.Document `json:"deleteItem"`
		}{e.Item})
	default:
		return nil, fmt.Errorf("cannot marshal event of kind %d", e.Kind)
	}
}

// UnmarshalJSON decodes the single-key wire format.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("event must carry exactly one key, got %d", len(raw))
	}

	for key, val := range raw {
		var out Event
		switch key {
		case "count":
			out.Kind = EventCount
			if err := json.Unmarshal(val, &out.Count); err != nil {
				return fmt.Errorf("decode count: %w", err)
			}
		case "exhausted":
			out.Kind = EventExhausted
			if err := json.Unmarshal(val, &out.Exhausted); err != nil {
				return fmt.Errorf("decode exhausted: %w", err)
			}
		case "data":
			out.Kind = EventData
			if err := json.Unmarshal(val, &out.Data); err != nil {
				return fmt.Errorf("decode data: %w", err)
			}
		case "deleteItem":
			out.Kind = EventDeleteItem
			if err := json.Unmarshal(val, &out.Item); err != nil {
				return fmt.Errorf("decode deleteItem: %w", err)
			}
		default:
			return fmt.Errorf("unknown event key %q", key)
		}
		*e = out
	}
	return nil
}
