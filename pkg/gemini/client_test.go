package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"models/test-model"}`))
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "inlineData")

		resp := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": reply}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestLocateFaces(t *testing.T) {
	ts := newTestServer(t, `{"faces":[{"label":"face","confidence":0.88,"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.4}}]}`)

	c, err := NewClient(context.Background(), Config{APIKey: "test", Model: "test-model", BaseURL: ts.URL})
	require.NoError(t, err)

	res, err := c.LocateFaces(context.Background(), "", "find faces", "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, res.Faces, 1)
	assert.Equal(t, 0.88, res.Faces[0].Confidence)
	assert.Equal(t, 0.4, res.Faces[0].Box.H)
}

func TestLocateFacesBadImage(t *testing.T) {
	ts := newTestServer(t, `{"faces":[]}`)

	c, err := NewClient(context.Background(), Config{APIKey: "test", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = c.LocateFaces(context.Background(), "", "find faces", "not base64!")
	assert.Error(t, err)
}

func TestFaceAnalysisSchema(t *testing.T) {
	schema := faceAnalysisSchema()
	require.Contains(t, schema.Properties, "faces")
	item := schema.Properties["faces"].Items
	require.NotNil(t, item)
	assert.ElementsMatch(t, []string{"x", "y", "w", "h"}, item.Properties["box"].Required)
}
