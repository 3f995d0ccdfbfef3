package observer

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func fixedTask(id string, sinks ...Sink) *Task {
	task := ForTask(id, sinks...)
	task.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return task
}

func TestTask_StampsEvents(t *testing.T) {
	var got []Event
	task := fixedTask("task-1", SinkFunc(func(ev Event) { got = append(got, ev) }))

	task.Emit("planning")
	task.Complete("done")

	require.Len(t, got, 2)
	assert.Equal(t, Event{Type: EventLog, TaskID: "task-1", Message: "planning", Time: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}, got[0])
	assert.Equal(t, EventComplete, got[1].Type)
	assert.Equal(t, "task-1", task.ID())
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	task := fixedTask("0123456789abcdef", WriterSink(&buf))

	task.Emit("step 1")
	task.Complete("finished")

	assert.Equal(t, "[01234567] step 1\n[01234567] == finished\n", buf.String())
}

func TestLogSink(t *testing.T) {
	core, logs := zapobserver.New(zap.InfoLevel)
	task := fixedTask("task-1", LogSink(zap.New(core)))

	task.Emit("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "task-1", entries[0].ContextMap()["task_id"])
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(1, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Type: EventLog, Message: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}

func dial(t *testing.T, rawURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(rawURL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_BroadcastsToClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(16, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	conn := dial(t, srv.URL)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	task := ForTask("task-9", hub)
	task.Emit("resolving search box")
	task.Complete("task complete")

	first := readEvent(t, conn)
	assert.Equal(t, EventLog, first.Type)
	assert.Equal(t, "task-9", first.TaskID)
	assert.Equal(t, "resolving search box", first.Message)
	assert.Equal(t, EventComplete, readEvent(t, conn).Type)

	cancel()
	<-stopped

	// The hub closes the connection on shutdown.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	conn.Close()
	srv.Close()
}

func TestHub_Serve(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hub := NewHub(16, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- hub.Serve(ctx, ln) }()

	conn := dial(t, "http://"+ln.Addr().String()+"/ws")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: EventLog, Message: "hello"})
	assert.Equal(t, "hello", readEvent(t, conn).Message)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	conn.Close()
}
