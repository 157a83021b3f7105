package model

import (
	"fmt"
	"strings"
)

// Direction is the sort direction of an order field.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// FieldType selects how the values of an order field are compared.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
)

// Order is one sort key: field, direction and value type.
// Entries are compared lexicographically: the first unequal field decides.
type Order struct {
	Field     string    `json:"field" yaml:"field"`
	Direction Direction `json:"direction" yaml:"direction"`
	Type      FieldType `json:"type" yaml:"type"`
}

// Sign returns -1 for descending order and 1 otherwise.
func (o Order) Sign() int {
	if o.Direction == Desc {
		return -1
	}
	return 1
}

func (o Order) Validate() error {
	if o.Field == "" {
		return fmt.Errorf("%w: order field cannot be empty", ErrInvalidQuery)
	}
	if o.Direction != Asc && o.Direction != Desc {
		return fmt.Errorf("%w: order direction must be asc or desc, got %q", ErrInvalidQuery, o.Direction)
	}
	if o.Type != TypeString && o.Type != TypeNumber {
		return fmt.Errorf("%w: order type must be string or number, got %q", ErrInvalidQuery, o.Type)
	}
	return nil
}

// ParseOrder parses "field:dir:type,field:dir:type". Direction defaults to
// asc and type to string when omitted.
func ParseOrder(s string) ([]Order, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Order
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) > 3 {
			return nil, fmt.Errorf("%w: malformed order entry %q", ErrInvalidQuery, part)
		}
		o := Order{Field: fields[0], Direction: Asc, Type: TypeString}
		if len(fields) > 1 && fields[1] != "" {
			o.Direction = Direction(strings.ToLower(fields[1]))
		}
		if len(fields) > 2 && fields[2] != "" {
			o.Type = FieldType(strings.ToLower(fields[2]))
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
