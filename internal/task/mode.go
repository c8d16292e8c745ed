package task

import (
	"fmt"
	"strings"
)

// Mode selects the routing rule and prompt/model transformation for a task.
type Mode int

const (
	ModeText Mode = iota
	ModeImage
	ModeRag
	ModeAgent
)

// Modes lists every mode in cycle order.
var Modes = []Mode{ModeText, ModeImage, ModeRag, ModeAgent}

// Next returns the successor in the fixed cycle Text→Image→Rag→Agent→Text.
func (m Mode) Next() Mode {
	switch m {
	case ModeText:
		return ModeImage
	case ModeImage:
		return ModeRag
	case ModeRag:
		return ModeAgent
	default:
		return ModeText
	}
}

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeImage:
		return "image"
	case ModeRag:
		return "rag"
	case ModeAgent:
		return "agent"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode resolves a mode by name (case-insensitive). Empty means text.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return ModeText, nil
	case "image":
		return ModeImage, nil
	case "rag":
		return ModeRag, nil
	case "agent":
		return ModeAgent, nil
	default:
		return ModeText, fmt.Errorf("unknown mode %q (want text, image, rag or agent)", s)
	}
}
