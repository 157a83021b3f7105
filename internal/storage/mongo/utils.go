package mongo

import (
	"fmt"

	"github.com/syntrixbase/livequery/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// makeFilterBSON translates a query into a Mongo filter document.
func makeFilterBSON(q model.Query) (bson.M, error) {
	var clauses []bson.M

	for _, f := range q.Filters {
		op := mapOp(f.Op)
		if op == "" {
			return nil, fmt.Errorf("%w: unsupported operator %q", model.ErrInvalidQuery, f.Op)
		}
		value := f.Value
		if op == "$elemMatch" {
			value = bson.M{"$eq": f.Value}
		}
		clauses = append(clauses, bson.M{mapField(f.Field): bson.M{op: value}})
	}

	if len(q.Or) > 0 {
		branches := make(bson.A, 0, len(q.Or))
		for _, branch := range q.Or {
			b, err := makeFilterBSON(branch)
			if err != nil {
				return nil, err
			}
			branches = append(branches, b)
		}
		clauses = append(clauses, bson.M{"$or": branches})
	}

	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0], nil
	default:
		and := make(bson.A, len(clauses))
		for i, c := range clauses {
			and[i] = c
		}
		return bson.M{"$and": and}, nil
	}
}

func makeSortBSON(order []model.Order) bson.D {
	sort := bson.D{}
	for _, o := range order {
		sort = append(sort, bson.E{Key: mapField(o.Field), Value: o.Sign()})
	}
	return sort
}

// mapField stores the record id as the primary key.
func mapField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

func mapOp(op model.FilterOp) string {
	switch op {
	case model.OpEq:
		return "$eq"
	case model.OpNe:
		return "$ne"
	case model.OpGt:
		return "$gt"
	case model.OpGte:
		return "$gte"
	case model.OpLt:
		return "$lt"
	case model.OpLte:
		return "$lte"
	case model.OpIn:
		return "$in"
	case model.OpContains:
		return "$elemMatch"
	default:
		return ""
	}
}

func toBSON(doc model.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[mapField(k)] = v
	}
	return out
}

func fromBSON(m bson.M) model.Document {
	doc := make(model.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			k = "id"
		}
		doc[k] = plain(v)
	}
	return doc
}

// plain converts driver container types into the map/slice shapes the rest
// of the module works with.
func plain(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case int32:
		return int64(val)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UnixMilli()
	default:
		return v
	}
}
