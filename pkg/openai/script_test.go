package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reels-generator/internal/storage"
	"reels-generator/pkg/retry"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
		want  []string
	}{
		{name: "json array", reply: `["One.", "Two."]`, want: []string{"One.", "Two."}},
		{name: "fenced json", reply: "Sure!\n```json\n[\"A\", \" \", \"B\"]\n```", want: []string{"A", "B"}},
		{name: "prose around array", reply: "Here you go: [\"Hook\", \"Payoff\"] Enjoy!", want: []string{"Hook", "Payoff"}},
		{name: "bare fence", reply: "```\n[\"Only\"]\n```", want: []string{"Only"}},
		{name: "numbered lines", reply: "1. First line\n2. Second line\n", want: []string{"First line", "Second line"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScript(tc.reply)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseScript("   ")
	assert.Error(t, err)
}

func TestGenerateScriptRotatesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Model string `json:"model"`
		}
		_ = decodeJSON(r, &body)
		models = append(models, body.Model)
		w.Header().Set("Content-Type", "application/json")
		if body.Model == "busy-model" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"[\"Scene one.\",\"Scene two.\"]"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "test-key", nil)
	c.Models = []string{"busy-model", "free-model"}
	c.Usage = storage.NewMemoryUsageStore(0)
	c.Retry = retry.Policy{MaxAttempts: 3}

	got, err := c.GenerateScript(context.Background(), "space travel", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Scene one.", "Scene two."}, got)
	assert.Equal(t, []string{"busy-model", "free-model"}, models)

	exceeded, err := c.Usage.Exceeded(context.Background(), "busy-model")
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestGenerateScriptRejectsEmptyTopic(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", nil)
	_, err := c.GenerateScript(context.Background(), " ", 3)
	assert.Error(t, err)
}
