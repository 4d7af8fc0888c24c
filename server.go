package astimux

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astiws"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server exposes the muxing pipeline state over http and websocket
type Server struct {
	l  astikit.SeverityLogger
	ws *astiws.Server
}

// ServerOptions represents server options
type ServerOptions struct {
	Logger astikit.StdLogger
}

// NewServer creates a new server
func NewServer(o ServerOptions) (s *Server) {
	s = &Server{l: astikit.AdaptStdLogger(o.Logger)}
	s.ws = astiws.NewServer(astiws.ServerOptions{
		Logger:         o.Logger,
		MaxMessageSize: 8192,
		OnServeError:   s.serveWebSocketError,
	})
	return
}

// Handler returns the server's http handler
func (s *Server) Handler() http.Handler {
	// Create router
	r := httprouter.New()

	// Add routes
	r.Handler(http.MethodGet, "/ok", s.serveOK())
	r.Handler(http.MethodGet, "/websocket", s.ws)
	return r
}

func (s *Server) serveOK() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {})
}

func (s *Server) serveWebSocketError(c *astiws.Client, err error) {
	var e *websocket.CloseError
	if ok := errors.As(err, &e); !ok ||
		(e.Code != websocket.CloseNoStatusReceived && e.Code != websocket.CloseNormalClosure) {
		s.l.Error(fmt.Errorf("astimux: serving websocket failed: %w", err))
	}
}

func (s *Server) sendWebSocket(eventName string, payload interface{}) {
	// Loop through clients
	for _, c := range s.ws.Clients() {
		if err := c.Write(eventName, payload); err != nil {
			s.l.Error(fmt.Errorf("astimux: writing event %s with payload %+v to websocket client %p failed: %w", eventName, payload, c, err))
		}
	}
}

// EventHandlerAdapter forwards handled events to websocket clients
func (s *Server) EventHandlerAdapter(eh *EventHandler) {
	// Register catch all handler
	eh.AddForAll(func(e Event) bool {
		// Get payload
		var p interface{}
		switch e.Name {
		case EventNameError:
			p = astikit.ErrorCause(e.Payload.(error))
		default:
			if e.Payload != nil {
				p = e.Payload
			}
		}

		// Send
		s.sendWebSocket(string(e.Name), p)
		return false
	})
}
