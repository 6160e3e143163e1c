package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgecomet/telemetry/pkg/types"
)

const extraFieldPrefix = "extra."

// TemplateFormatter formats a RecordedEvent using a template string
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	raw   string // e.g. "{extra.reason}"
	field string // e.g. "extra.reason"
	start int
	end   int
}

// validFields contains all fixed placeholder names. "extra.<key>" is accepted for any key.
var validFields = map[string]bool{
	"time":       true,
	"timestamp":  true,
	"session_id": true,
	"id":         true,
	"category":   true,
	"name":       true,
	"metric":     true,
	"extra":      true,
}

// formatInput is what a placeholder can read
type formatInput struct {
	event     *types.RecordedEvent
	sessionID string
	emittedAt time.Time
}

// NewTemplateFormatter parses and validates the template.
// Returns error if any placeholder is unknown or template is empty.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	placeholders, err := parsePlaceholders(template)
	if err != nil {
		return nil, err
	}

	return &TemplateFormatter{
		template:     template,
		placeholders: placeholders,
	}, nil
}

func parsePlaceholders(template string) ([]placeholder, error) {
	var placeholders []placeholder
	i := 0

	for i < len(template) {
		start := strings.Index(template[i:], "{")
		if start == -1 {
			break
		}
		start += i

		end := strings.Index(template[start:], "}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		field := template[start+1 : end]
		if field == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}
		if !isValidField(field) {
			return nil, fmt.Errorf("unknown placeholder {%s}", field)
		}

		placeholders = append(placeholders, placeholder{
			raw:   template[start : end+1],
			field: field,
			start: start,
			end:   end + 1,
		})

		i = end + 1
	}

	return placeholders, nil
}

func isValidField(field string) bool {
	if validFields[field] {
		return true
	}
	return strings.HasPrefix(field, extraFieldPrefix) && len(field) > len(extraFieldPrefix)
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders the event using the template
func (f *TemplateFormatter) Format(event *types.RecordedEvent, sessionID string, emittedAt time.Time) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	in := formatInput{event: event, sessionID: sessionID, emittedAt: emittedAt}

	var b strings.Builder
	b.Grow(len(f.template) + 64)
	prev := 0
	for _, p := range f.placeholders {
		b.WriteString(f.template[prev:p.start])
		b.WriteString(fieldValue(in, p.field))
		prev = p.end
	}
	b.WriteString(f.template[prev:])
	return b.String()
}

func fieldValue(in formatInput, field string) string {
	if key, ok := strings.CutPrefix(field, extraFieldPrefix); ok {
		v, present := in.event.Extra[key]
		if !present {
			return "-"
		}
		return formatString(v)
	}

	switch field {
	case "time":
		return formatTime(in.emittedAt)
	case "timestamp":
		return strconv.FormatUint(in.event.Timestamp, 10)
	case "session_id":
		return formatString(in.sessionID)
	case "id":
		return strconv.FormatUint(uint64(in.event.ID), 10)
	case "category":
		return formatString(in.event.Category)
	case "name":
		return formatString(in.event.Name)
	case "metric":
		return formatString(in.event.FullName())
	case "extra":
		return formatExtras(in.event.Extra)
	default:
		return "-"
	}
}

// formatExtras renders extras as a JSON object with sorted keys
func formatExtras(extras types.Extras) string {
	if len(extras) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(extras))
	for _, k := range extras.Keys() {
		parts = append(parts, fmt.Sprintf("%q:%q", k, extras[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func escapeString(s string) string {
	escaped := strings.ReplaceAll(s, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	escaped = strings.ReplaceAll(escaped, "\n", "\\n")
	escaped = strings.ReplaceAll(escaped, "\t", "\\t")
	escaped = strings.ReplaceAll(escaped, "\r", "\\r")
	return escaped
}

func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + escapeString(s) + "\""
}

// formatTime formats a time in ISO 8601 format
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
