package router

import (
	"strings"

	"github.com/OSchengdu/swissK-agent/internal/task"
)

// Default model identifiers per mode.
const (
	DefaultTextModel  = "qwen3:8b"
	DefaultImageModel = "qwen-vl:8b"
	DefaultRagModel   = "qwen3:8b"
)

// Prefixes and fixed messages recognised by the router.
const (
	ImagePrefix   = "image:"
	RagLoadPrefix = "rag:load "
	RagTag        = "[RAG] "

	ImageUsageMessage = "Image mode: use 'image:/path'"
	RagLoadedMessage  = "RAG doc loaded (simulated)."
)

// Kind distinguishes routing outcomes.
type Kind int

const (
	// Immediate resolves locally; no network call is made.
	Immediate Kind = iota
	// Dispatch sends Prompt to Model on the generation endpoint.
	Dispatch
	// Agent hands Prompt to the agent sub-pipeline.
	Agent
)

func (k Kind) String() string {
	switch k {
	case Immediate:
		return "immediate"
	case Dispatch:
		return "dispatch"
	case Agent:
		return "agent"
	default:
		return "unknown"
	}
}

// Decision is the outcome of routing one input.
type Decision struct {
	Kind    Kind
	Message string // Immediate only
	Model   string // Dispatch only
	Prompt  string // Dispatch and Agent
}

// Models binds modes to model identifiers.
type Models struct {
	Text  string
	Image string
	Rag   string
}

// DefaultModels returns the built-in model bindings.
func DefaultModels() Models {
	return Models{Text: DefaultTextModel, Image: DefaultImageModel, Rag: DefaultRagModel}
}

// Router maps (mode, input) to a Decision. It holds no mutable state.
type Router struct {
	Models Models
}

// New builds a router, filling empty model names with defaults.
func New(models Models) Router {
	def := DefaultModels()
	if strings.TrimSpace(models.Text) == "" {
		models.Text = def.Text
	}
	if strings.TrimSpace(models.Image) == "" {
		models.Image = def.Image
	}
	if strings.TrimSpace(models.Rag) == "" {
		models.Rag = def.Rag
	}
	return Router{Models: models}
}

// Route applies the default model bindings.
func Route(mode task.Mode, input string) Decision {
	return New(Models{}).Route(mode, input)
}

// Route decides how input is handled in mode. Malformed prompts are not
// rejected here; they surface later as request or HTTP errors.
func (r Router) Route(mode task.Mode, input string) Decision {
	switch mode {
	case task.ModeImage:
		if strings.HasPrefix(input, ImagePrefix) {
			return Decision{Kind: Dispatch, Model: r.Models.Image, Prompt: input}
		}
		return Decision{Kind: Immediate, Message: ImageUsageMessage}
	case task.ModeRag:
		if strings.HasPrefix(input, RagLoadPrefix) {
			return Decision{Kind: Immediate, Message: RagLoadedMessage}
		}
		return Decision{Kind: Dispatch, Model: r.Models.Rag, Prompt: RagTag + input}
	case task.ModeAgent:
		return Decision{Kind: Agent, Prompt: input}
	default:
		return Decision{Kind: Dispatch, Model: r.Models.Text, Prompt: input}
	}
}
