package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OSchengdu/swissK-agent/internal/tools"
)

func TestSchemaHandlerListsTools(t *testing.T) {
	h := SchemaHandler{Registry: tools.Default()}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var schemas []tools.Schema
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &schemas))
	var names []string
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	require.ElementsMatch(t, []string{"calc", "time_now"}, names)
}

func TestSchemaHandlerSingleTool(t *testing.T) {
	h := SchemaHandler{Registry: tools.Default()}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools/calc", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"calc"`)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools/rm", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/tools", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
