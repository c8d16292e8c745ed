package stream

import "encoding/json"

// Kind tags a decoded stream event.
type Kind int

const (
	TextChunk Kind = iota
	ErrorOccurred
	Done
)

func (k Kind) String() string {
	switch k {
	case TextChunk:
		return "text"
	case ErrorOccurred:
		return "error"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one decoded unit of a streamed generation response.
type Event struct {
	Kind Kind
	Text string // chunk text or error message
}

// fragment mirrors one NDJSON line of the generate endpoint.
type fragment struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    *string `json:"error"`
}

// ParseLine classifies a single line. ok is false for lines that are not a
// JSON object; callers skip those. A line may yield several events, in the
// order text, error, done.
func ParseLine(line []byte) (events []Event, ok bool) {
	var f fragment
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, false
	}
	if f.Response != nil {
		events = append(events, Event{Kind: TextChunk, Text: *f.Response})
	}
	if f.Error != nil {
		events = append(events, Event{Kind: ErrorOccurred, Text: *f.Error})
	}
	if f.Done {
		events = append(events, Event{Kind: Done})
	}
	return events, true
}
