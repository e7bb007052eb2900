package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paperchat-be/pkg/llm"

	"github.com/stretchr/testify/require"
)

func TestChatStreamDeliversFragmentsAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"hello "}}]}`)
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"world"}}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	provider := NewHuggingFaceProvider("test-key", srv.URL, "mistralai/Mistral-7B-Instruct-v0.3")
	deltas, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var content string
	sawDone := false
	for d := range deltas {
		require.NoError(t, d.Err)
		if d.Done {
			sawDone = true
			continue
		}
		content += d.Content
	}
	require.True(t, sawDone)
	require.Equal(t, "hello world", content)
}

// Same shape as the ollama test: a canceled consumer must not leave the
// stream goroutine parked on an unread terminal delta with the response
// body still open.
func TestChatStreamUnwindsAfterCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{"content":"first"}}]}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	provider := NewHuggingFaceProvider("test-key", srv.URL, "mistralai/Mistral-7B-Instruct-v0.3")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deltas, err := provider.ChatStream(ctx, []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	first := <-deltas
	require.NoError(t, first.Err)
	require.Equal(t, "first", first.Content)

	cancel()
	time.Sleep(500 * time.Millisecond)

	select {
	case d, ok := <-deltas:
		require.False(t, ok, "channel still open, pending delta %+v", d)
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine did not unwind after cancel")
	}
}
