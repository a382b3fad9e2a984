package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(failureRate float64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandler(NewMockOllama(failureRate, 0, 0, []string{"llama3.1:8b"})))
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGenerate(t *testing.T) {
	t.Run("builds a sentence from the prompt", func(t *testing.T) {
		prompt := "Month: 2024-03\nTotal: $52.50\nTop Category: Groceries\nSample Merchants: Whole Foods\n"
		body, _ := json.Marshal(GenerateRequest{Model: "llama3.1:8b", Prompt: prompt})

		w := do(newTestRouter(0), http.MethodPost, "/api/generate", string(body))
		require.Equal(t, http.StatusOK, w.Code)

		var resp GenerateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Done)
		assert.Equal(t, "In 2024-03 you spent $52.50, mostly on Groceries; trimming that category a little would help.", resp.Response)
	})

	t.Run("simulated failure", func(t *testing.T) {
		w := do(newTestRouter(1), http.MethodPost, "/api/generate", `{"model":"llama3.1:8b","prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unknown model", func(t *testing.T) {
		w := do(newTestRouter(0), http.MethodPost, "/api/generate", `{"model":"mistral","prompt":"hi"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing prompt", func(t *testing.T) {
		w := do(newTestRouter(0), http.MethodPost, "/api/generate", `{"model":"llama3.1:8b"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTags(t *testing.T) {
	w := do(newTestRouter(0), http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp TagsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Models, 1)
	assert.Equal(t, "llama3.1:8b", resp.Models[0].Name)
}

func TestUpdateConfig(t *testing.T) {
	r := newTestRouter(0)

	w := do(r, http.MethodPut, "/config", `{"failure_rate":1.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/config", `{"failure_rate":1}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/generate", `{"model":"llama3.1:8b","prompt":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCompletionWithoutTotals(t *testing.T) {
	assert.Contains(t, completion("free text"), "Spending looks steady")
}
