package stream

import (
	"strings"

	"github.com/OSchengdu/swissK-agent/internal/task"
)

// Observer receives every decoded event, in order.
type Observer func(Event)

// Result is the accumulated outcome of one stream.
type Result struct {
	Text   string
	Failed bool // an upstream error field was seen
	Chunks int
}

// Decoder folds a line stream into a single result.
type Decoder struct {
	Observer Observer
}

// Decode consumes src until done, an error fragment, or exhaustion.
//
// Malformed lines are skipped: streaming peers may split frames. An error
// fragment discards any accumulated text and stops reading at once, so the
// result is always a clean "Error: ..." string in that case.
func (d Decoder) Decode(src LineSource) Result {
	var (
		acc strings.Builder
		res Result
	)
	for src.Next() {
		events, ok := ParseLine(src.Bytes())
		if !ok {
			continue
		}
		for _, ev := range events {
			if d.Observer != nil {
				d.Observer(ev)
			}
			switch ev.Kind {
			case TextChunk:
				acc.WriteString(ev.Text)
				res.Chunks++
			case ErrorOccurred:
				res.Text = task.ErrorPrefix + ev.Text
				res.Failed = true
				return res
			case Done:
				res.Text = strings.TrimSpace(acc.String())
				return res
			}
		}
	}
	res.Text = strings.TrimSpace(acc.String())
	return res
}

// Decode runs a Decoder without an observer and returns the final string.
func Decode(src LineSource) string {
	return Decoder{}.Decode(src).Text
}
