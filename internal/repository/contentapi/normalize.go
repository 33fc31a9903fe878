package contentapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Records may come flat ({"id":..,"title":..}) or wrapped ({"id":..,"attributes":{..}}),
// fields may be camelCase or snake_case. record hides these differences
type record struct {
	id    gjson.Result
	attrs gjson.Result
}

// unwrapOne extracts a single record from {"data": {...}} or a bare object
func unwrapOne(res gjson.Result) (record, bool) {
	if data := res.Get("data"); data.Exists() {
		res = data
	}
	if !res.IsObject() {
		return record{}, false
	}
	return toRecord(res), true
}

// unwrapMany extracts records from {"data": [...]}, a bare array or a single object
func unwrapMany(res gjson.Result) []record {
	if data := res.Get("data"); data.Exists() {
		res = data
	}

	switch {
	case res.IsArray():
		var out []record
		res.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() {
				out = append(out, toRecord(value))
			}
			return true
		})
		return out
	case res.IsObject():
		return []record{toRecord(res)}
	default:
		return nil
	}
}

func toRecord(obj gjson.Result) record {
	attrs := obj
	if a := obj.Get("attributes"); a.IsObject() {
		attrs = a
	}
	return record{id: obj.Get("id"), attrs: attrs}
}

// get returns the first present field among names
func (r record) get(names ...string) gjson.Result {
	for _, name := range names {
		if v := r.attrs.Get(gjson.Escape(name)); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func (r record) str(names ...string) string {
	return r.get(names...).String()
}

func (r record) boolean(names ...string) bool {
	return r.get(names...).Bool()
}

func (r record) integer(names ...string) int {
	return int(r.get(names...).Int())
}

func (r record) decimal(names ...string) decimal.Decimal {
	v := r.get(names...)
	if !v.Exists() {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r record) time(names ...string) time.Time {
	v := r.get(names...)
	if !v.Exists() {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String())
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r record) optionalTime(names ...string) *time.Time {
	t := r.time(names...)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r record) uuid() uuid.UUID {
	id, err := uuid.Parse(r.id.String())
	if err != nil {
		id, _ = uuid.Parse(r.str("uid", "documentId"))
	}
	return id
}

// relation reads a reference that may be a plain id, {"id":..} or {"data":{"id":..}}
func (r record) relation(names ...string) uuid.UUID {
	v := r.get(names...)
	if v.IsObject() {
		if inner := v.Get("data.id"); inner.Exists() {
			v = inner
		} else {
			v = v.Get("id")
		}
	}
	id, _ := uuid.Parse(v.String())
	return id
}

func (r record) optionalRelation(names ...string) *uuid.UUID {
	id := r.relation(names...)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (r record) stringMap(names ...string) map[string]string {
	out := map[string]string{}
	v := r.get(names...)
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Null {
			out[key.String()] = value.String()
		}
		return true
	})
	return out
}
