package rpc

// Event types streamed back to clients.
const (
	EventChunk  = "chunk"
	EventResult = "result"
	EventError  = "error"
	EventDone   = "done"
)

// TaskRequest asks the daemon to answer one prompt under a mode.
type TaskRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Prompt        string `json:"prompt"`
	Mode          string `json:"mode,omitempty"` // text|image|rag|agent, default text
}

// TaskEvent streams back progress from the daemon.
type TaskEvent struct {
	Type          string `json:"type"` // chunk|result|error|done
	SessionID     string `json:"session_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Token         string `json:"token,omitempty"`
	Result        string `json:"result,omitempty"`
	Failed        bool   `json:"failed,omitempty"`
	Error         string `json:"error,omitempty"`
	Done          bool   `json:"done,omitempty"`
	Step          int    `json:"step,omitempty"`
}

// TaskStreamRequest is the bidirectional stream payload for Connect RPC.
// Every message carrying Task queues one task; results come back in the same
// order. Close, or closing the request side, stops accepting tasks.
type TaskStreamRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Task      *TaskRequest `json:"task,omitempty"`
	Close     bool         `json:"close,omitempty"`
}
