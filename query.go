package mongofam

import (
	"errors"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// M is a map containing query operators to filter documents or update operators to modify them.
type M map[string]any

// NewM creates a new M based on pairs.
// Pairs must be in the form NewM(key1, value1, key2, value2, ...)
func NewM(pairs ...any) M {
	out := make(M, len(pairs)/2)
	return out.Add(pairs...)
}

// Add adds pairs to the M. Keys that are not strings and a trailing key without a value are skipped.
func (f M) Add(pairs ...any) M {
	for i := 0; i+1 < len(pairs); i += 2 {
		if key, ok := pairs[i].(string); ok {
			f[key] = pairs[i+1]
		}
	}
	return f
}

// Prepare returns a bson.D representation of the M that can be used in a MongoDB command.
func (f M) Prepare() bson.D {
	out := make(bson.D, 0, len(f))
	for k, v := range f {
		out = append(out, bson.E{Key: k, Value: v})
	}
	return out
}

// String returns a string representation of the M.
func (f M) String() string {
	return f.Prepare().String()
}

func prepareUpdates(upd map[string]any, op string) M {
	return M{op: M(upd)}
}

func diffToUpdates(diff any) (M, error) {
	upd, err := processDiffStruct(diff, "")
	if err != nil {
		return nil, err
	}
	return prepareUpdates(upd, Set), nil
}

// processDiffStruct collects non-nil pointer, slice and map fields of a diff struct.
// Nested structs become dotted field paths.
func processDiffStruct(diff any, parentField string) (map[string]any, error) {
	req := reflect.ValueOf(diff)
	if req.Kind() == reflect.Pointer && !req.IsNil() {
		req = req.Elem()
	}
	if req.Kind() != reflect.Struct {
		return nil, errors.New("only struct fields are allowed")
	}

	upd := make(map[string]any)
	for n := 0; n < req.NumField(); n++ {
		fieldName := req.Type().Field(n).Tag.Get("bson")
		if fieldName == "" || fieldName == "-" {
			continue
		}
		if parentField != "" {
			fieldName = parentField + "." + fieldName
		}

		field := req.Field(n)
		if !field.CanInterface() {
			continue
		}

		kind := field.Kind()
		if kind != reflect.Pointer && kind != reflect.Slice && kind != reflect.Map {
			continue
		}
		if field.IsNil() {
			// nil == no update for field
			continue
		}
		if kind == reflect.Pointer {
			field = field.Elem()
		}

		if field.Kind() == reflect.Struct {
			if t, ok := field.Interface().(time.Time); ok {
				upd[fieldName] = t
				continue
			}
			if !isDiffStruct(field.Type()) {
				// plain value struct, e.g. a point{X, Y int}
				upd[fieldName] = field.Interface()
				continue
			}
			nested, err := processDiffStruct(field.Interface(), fieldName)
			if err != nil {
				// all fields are nil, nothing to update
				continue
			}
			for k, v := range nested {
				upd[k] = v
			}
			continue
		}

		upd[fieldName] = field.Interface()
	}

	if len(upd) == 0 {
		return nil, errors.New("updates are empty")
	}

	return upd, nil
}

// isDiffStruct reports whether the struct has tagged pointer, slice or map fields.
func isDiffStruct(t reflect.Type) bool {
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		if !f.IsExported() {
			continue
		}
		if tag := f.Tag.Get("bson"); tag == "" || tag == "-" {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map:
			return true
		}
	}
	return false
}
