package container

import "strconv"

// Tag is named metadata attached to a service. Tags drive collection queries
// (see Tagged) and framework conventions such as listener registration.
type Tag struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// NewTag builds a Tag. data may be nil.
//
//	container.NewTag("listener", map[string]any{"event": "user.created", "priority": 10})
func NewTag(name string, data map[string]any) Tag {
	return Tag{Name: name, Data: data}
}

// Get returns a data field.
func (t Tag) Get(key string) (any, bool) {
	v, ok := t.Data[key]
	return v, ok
}

// Priority returns the numeric "priority" field when present.
func (t Tag) Priority() (float64, bool) {
	v, ok := t.Data["priority"]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
