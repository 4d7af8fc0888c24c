package astimux

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asticode/go-astiws"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	// Create server
	s := NewServer(ServerOptions{Logger: log.New(log.Writer(), "", 0)})
	eh := NewEventHandler()
	s.EventHandlerAdapter(eh)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// OK
	resp, err := http.Get(ts.URL + "/ok")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Create websocket client
	c := astiws.NewClient(astiws.ClientConfiguration{MaxMessageSize: 8192}, log.New(log.Writer(), "", 0))
	defer c.Close()
	done := make(chan string)
	c.AddListener("test.event", func(c *astiws.Client, eventName string, payload json.RawMessage) error {
		var p string
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		done <- p
		return nil
	})
	require.NoError(t, c.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/websocket"))
	go c.Read() //nolint: errcheck

	// Wait for the server to register the client
	require.Eventually(t, func() bool { return len(s.ws.Clients()) == 1 }, time.Second, 10*time.Millisecond)

	// Emit
	eh.Emit(Event{Name: "test.event", Payload: "hello"})

	// Wait for event
	select {
	case p := <-done:
		require.Equal(t, "hello", p)
	case <-time.After(time.Second):
		t.Fatal("no websocket event received")
	}
}
