package tools

import (
	"context"
	"fmt"
	"time"
)

// Clock reports the current time.
type Clock struct {
	Now func() time.Time
}

func (Clock) Schema() Schema {
	return Schema{
		Name:        "time_now",
		Description: "Return the current local date and time (RFC 3339). Optional IANA zone.",
		Parameters: []SchemaField{
			{Name: "zone", Type: "string", Description: "IANA time zone, e.g. Europe/Berlin", Required: false},
		},
	}
}

func (c Clock) Run(_ context.Context, args map[string]interface{}) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	if zone, _ := args["zone"].(string); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return "", fmt.Errorf("unknown zone %q: %w", zone, err)
		}
		t = t.In(loc)
	}
	return t.Format(time.RFC3339), nil
}
