// Package changefeed carries mutations applied by one Manager to the
// Managers of other processes sharing the same Store.
package changefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/livequery/internal/livequery"
	"github.com/syntrixbase/livequery/pkg/model"
)

// Change is the wire form of a persisted mutation.
type Change struct {
	Origin    string             `json:"origin"`
	Op        livequery.ChangeOp `json:"op"`
	Before    model.Document     `json:"before,omitempty"`
	After     model.Document     `json:"after,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewOrigin returns a fresh process identity for the feed.
func NewOrigin() string {
	return uuid.NewString()
}

// Subject returns the subject suffix a change is published under.
func (c Change) Subject() string {
	return string(c.Op)
}

// Validate checks that the images required by the operation are present.
func (c Change) Validate() error {
	switch c.Op {
	case livequery.OpInsert:
		if c.After == nil {
			return fmt.Errorf("insert change without after image")
		}
	case livequery.OpRemove:
		if c.Before == nil {
			return fmt.Errorf("remove change without before image")
		}
	case livequery.OpUpdate:
		if c.Before == nil || c.After == nil {
			return fmt.Errorf("update change needs before and after images")
		}
	default:
		return fmt.Errorf("unknown change op %q", c.Op)
	}
	return nil
}

// Encode marshals c to JSON.
func Encode(c Change) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Decode unmarshals and validates a change.
func Decode(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Change{}, err
	}
	return c, nil
}
