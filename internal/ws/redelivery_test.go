package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hookline/fetch-relay/internal/hooks"
)

// A frame the writer pump has dequeued must survive a dead connection so
// the next connection can deliver it.
func TestServe_FrameSurvivesDeadConnection(t *testing.T) {
	serverClosed := make(chan struct{})
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.CloseNow()
		close(serverClosed)
	}))
	defer dead.Close()

	deadURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	conn, _, err := websocket.Dial(context.Background(), deadURL, nil)
	require.NoError(t, err)

	// Let the server-side close reach the client before serving.
	<-serverClosed
	time.Sleep(20 * time.Millisecond)

	m := NewManager(Config{URL: deadURL, QueueSize: 4}, hooks.NewRegistry())
	require.NoError(t, m.Send([]byte("frame")))

	_ = m.serve(context.Background(), conn)

	outstanding := len(m.queue)
	if m.pending != nil {
		outstanding++
		require.Equal(t, []byte("frame"), m.pending)
	}
	require.Equal(t, 1, outstanding, "frame dropped across disconnect")

	// A second connection delivers the held frame.
	received := make(chan []byte, 1)
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		received <- data
	}))
	defer live.Close()

	liveURL := "ws" + strings.TrimPrefix(live.URL, "http")
	conn2, _, err := websocket.Dial(context.Background(), liveURL, nil)
	require.NoError(t, err)

	serveCtx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		_ = m.serve(serveCtx, conn2)
		close(serveDone)
	}()

	select {
	case data := <-received:
		require.Equal(t, []byte("frame"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("held frame was not redelivered")
	}

	cancel()
	<-serveDone
}
