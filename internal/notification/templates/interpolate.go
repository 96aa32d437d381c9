package templates

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var placeholder = regexp.MustCompile(`\{\{([A-Za-z0-9_.]+)\}\}`)

// Interpolate replaces each {{key}} in s with data[key]. Keys missing from data are left as written.
func Interpolate(s string, data map[string]interface{}) string {
	if len(data) == 0 {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := m[2 : len(m)-2]
		v, ok := data[key]
		if !ok {
			return m
		}
		return Stringify(v)
	})
}

// Stringify renders a data value the way it should read in a message.
func Stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Render applies data to every string field of t.
func (t Template) Render(data map[string]interface{}) Template {
	t.Title = Interpolate(t.Title, data)
	t.Message = Interpolate(t.Message, data)
	t.ActionURL = Interpolate(t.ActionURL, data)
	t.ActionLabel = Interpolate(t.ActionLabel, data)
	return t
}
