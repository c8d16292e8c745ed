package tools

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/OSchengdu/swissK-agent/internal/tools"
)

// SchemaHandler serves the agent's tool schemas as JSON. GET /tools lists all
// of them; GET /tools/<name> returns one.
type SchemaHandler struct {
	Registry *tools.Registry
}

// ServeHTTP renders schemas.
func (h SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tools"), "/")
	if name == "" {
		_ = json.NewEncoder(w).Encode(h.Registry.Schemas())
		return
	}
	schema, ok := h.Registry.Schema(name)
	if !ok {
		http.Error(w, "unknown tool", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(schema)
}
