package rules

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
)

// fieldValue extracts a customer field by its wire name. The second return
// reports presence: zero-value optionals (no location, no tags, no last
// order) count as absent, matching how omitempty documents look in the store.
func fieldValue(c *models.Customer, field string) (interface{}, bool) {
	switch field {
	case "name":
		return c.Name, c.Name != ""
	case "email":
		return c.Email, c.Email != ""
	case "location":
		return c.Location, c.Location != ""
	case "totalSpend":
		return c.TotalSpend, true
	case "orderCount":
		return float64(c.OrderCount), true
	case "lastOrderDate":
		if c.LastOrderDate == nil {
			return time.Time{}, false
		}
		return *c.LastOrderDate, true
	case "isActive":
		return c.IsActive, true
	case "tags":
		return c.Tags, len(c.Tags) > 0
	}
	return nil, false
}

// isDateField reports whether a field holds a timestamp. Mirrors the store
// schema naming (lastOrderDate, createdAt, ...).
func isDateField(field string) bool {
	lower := strings.ToLower(field)
	return strings.Contains(lower, "date") || strings.HasSuffix(field, "At")
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(b))
		return parsed, err == nil
	}
	return false, false
}

// betweenBounds extracts the [min, max] pair for the between operator. The
// API sends either a two-element array or a {min, max} object.
func betweenBounds(v interface{}) (interface{}, interface{}, bool) {
	switch bounds := v.(type) {
	case []interface{}:
		if len(bounds) == 2 {
			return bounds[0], bounds[1], true
		}
	case map[string]interface{}:
		min, okMin := bounds["min"]
		max, okMax := bounds["max"]
		if okMin && okMax {
			return min, max, true
		}
	}
	return nil, nil, false
}
