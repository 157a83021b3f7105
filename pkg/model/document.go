package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
)

func CheckDocumentID(id string) bool {
	return idRegex.MatchString(id)
}

// Document is a single record of the watched collection, represents a JSON object.
//
//	"id" field is reserved for the record identity.
type Document map[string]interface{}

func (doc Document) GetID() string {
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

func (doc Document) SetID(newID string) {
	doc["id"] = newID
}

func (doc Document) GenerateIDIfEmpty() {
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.New().String()
	}
}

func (doc Document) HasKey(key string) bool {
	_, exists := doc[key]
	return exists
}

// Lookup resolves a dotted field path ("address.city") against nested maps.
func (doc Document) Lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(doc)
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Document:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of nested maps and slices. Scalars are shared.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	return cloneMap(doc)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case Document:
		return Document(cloneMap(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func (doc Document) ValidateDocument() error {
	if doc == nil {
		return errors.New("data cannot be nil")
	}

	if idVal, ok := doc["id"]; ok {
		switch idValue := idVal.(type) {
		case string:
			if idValue == "" {
				return errors.New("data field 'id' cannot be empty")
			}

			if !idRegex.MatchString(idValue) {
				return errors.New("invalid 'id' field: must be 1-64 characters of a-z, A-Z, 0-9, _, ., -")
			}
		case int, int32, int64:
			doc["id"] = fmt.Sprintf("%d", idValue)
		default:
			return errors.New("data field 'id' must be a string or integer")
		}
	}

	return nil
}
