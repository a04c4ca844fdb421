package reports

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Records are schema-less; the helpers below are the only places that look
// inside one, and each inspects a single field.

// dateLayouts are tried in order when a created value is a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date strings the store's $toDate accepts in practice.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CreatedDate derives the creation date of a record. Arrays never yield a
// date, strings are parsed, embedded objects contribute their nested "date"
// (or Extended JSON "$date") value, and anything else must already be a date.
func CreatedDate(doc bson.M) (time.Time, bool) {
	v, ok := doc["created"]
	if !ok {
		return time.Time{}, false
	}
	return toDate(v, true)
}

func toDate(v interface{}, descend bool) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val.UTC(), true
	case primitive.DateTime:
		return val.Time().UTC(), true
	case string:
		return ParseDate(val)
	case int32, int64, float64, json.Number:
		// a bare number is only converted when nested, where the store's
		// $convert reads it as epoch milliseconds
		if descend {
			return time.Time{}, false
		}
		ms, _ := toFloat(val)
		return time.UnixMilli(int64(ms)).UTC(), true
	case bson.A, []interface{}:
		return time.Time{}, false
	case bson.M:
		if !descend {
			return time.Time{}, false
		}
		return nestedDate(map[string]interface{}(val))
	case map[string]interface{}:
		if !descend {
			return time.Time{}, false
		}
		return nestedDate(val)
	case bson.D:
		if !descend {
			return time.Time{}, false
		}
		return nestedDate(val.Map())
	}
	return time.Time{}, false
}

func nestedDate(m map[string]interface{}) (time.Time, bool) {
	if d, ok := m["date"]; ok && d != nil {
		return toDate(d, false)
	}
	if d, ok := m["$date"]; ok && d != nil {
		return toDate(d, false)
	}
	return time.Time{}, false
}

// IsTrue reports whether field holds the boolean true.
func IsTrue(doc bson.M, field string) bool {
	b, ok := doc[field].(bool)
	return ok && b
}

// NotRemoved reports whether a record counts as live: removed is false or absent.
func NotRemoved(doc bson.M) bool {
	v, ok := doc["removed"]
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	return isBool && !b
}

// Status returns the raw status value, nil when absent.
func Status(doc bson.M) interface{} {
	return doc["status"]
}

// Total returns the numeric total of a record. Non-numeric values are not
// summed, matching $sum.
func Total(doc bson.M) (float64, bool) {
	return toFloat(doc["total"])
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// StatusKey returns a comparable grouping key for a raw status value.
func StatusKey(v interface{}) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return "s:" + s
	}
	// numerically equal values share a key whatever their wire type
	if f, ok := toFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// CompareStatus orders status values: nil first, then numbers, then
// strings, then everything else by its printed form.
func CompareStatus(a, b interface{}) int {
	ra, rb := statusRank(a), statusRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func statusRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	return 3
}

// IsMissingCreated reports whether an ingested record lacks a usable
// created value: absent, null, empty string, false or zero.
func IsMissingCreated(doc map[string]interface{}) bool {
	v, ok := doc["created"]
	if !ok || v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case int32:
		return val == 0
	case int64:
		return val == 0
	case json.Number:
		return val.String() == "0"
	}
	return false
}
