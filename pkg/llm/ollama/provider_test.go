package ollama

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
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"hello "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"world"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
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

// A consumer that cancels mid-stream stops draining deltas. The stream
// goroutine still has to unwind and release the response body, so the
// channel must end up closed, not wedged behind an unread terminal delta.
func TestChatStreamUnwindsAfterCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"first"},"done":false}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
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
