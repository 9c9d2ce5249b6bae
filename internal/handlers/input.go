package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-andiamo/splitter"
)

// dateLayouts are tried in order when decoding request dates. The short
// forms come from HTML date and datetime-local inputs and are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime decodes the date formats clients commonly send.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string")
	}
	parsed, err := parseDate(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

var listSplitter = func() splitter.Splitter {
	s, err := splitter.NewSplitter(',', splitter.DoubleQuotes)
	if err != nil {
		panic(err)
	}
	return s
}()

// stringList accepts either a JSON array of strings or a single
// comma-separated string. Double-quoted items may contain commas.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected a list of strings")
	}
	parsed, err := splitList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func splitList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	parts, err := listSplitter.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid list: %w", err)
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && strings.HasPrefix(part, `"`) && strings.HasSuffix(part, `"`) {
			part = strings.TrimSpace(part[1 : len(part)-1])
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
