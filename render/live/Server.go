// Package live streams the events of a training session to browsers
// over websockets. Every event is sent as a JSON object; frame
// snapshots are rate limited per client.
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Maximum message size allowed from peer
	maxMessageSize = 8192
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Time allowed for open connections to finish on shutdown
	closeGracePeriod = 10 * time.Second

	// Minimum interval between two snapshots sent to a client
	snapshotResolution = 100 * time.Millisecond
	// Events buffered per client before the client misses events
	clientBuffer = 64
)

// Server fans events out to websocket clients. A client which cannot
// keep up misses events rather than slowing down the session.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan event.Event]struct{}
	closed  bool
}

// NewServer returns a new Server with no clients
func NewServer() *Server {
	return &Server{clients: make(map[chan event.Event]struct{})}
}

// Run forwards every event received on in to all clients until in or
// done is closed, after which all clients are disconnected
func (s *Server) Run(done <-chan struct{}, in <-chan event.Event) {
	defer s.close()

	for e := range channerics.OrDone(done, in) {
		s.mu.Lock()
		for c := range s.clients {
			select {
			case c <- e:
			default:
			}
		}
		s.mu.Unlock()
	}
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) subscribe() (chan event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	c := make(chan event.Event, clientBuffer)
	s.clients[c] = struct{}{}
	return c, true
}

func (s *Server) unsubscribe(c chan event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c)
	}
}

func (s *Server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c)
	}
}

// Handler returns the handler serving the index page at / and the
// event stream at /ws
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.serveWebsocket)
	return mux
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	events, ok := s.subscribe()
	if !ok {
		http.Error(w, "session terminated", http.StatusGone)
		return
	}
	defer s.unsubscribe(events)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	c := &client{ws: ws, events: events}
	if err := c.sync(r.Context()); err != nil {
		log.Printf("live: client %v: %v", r.RemoteAddr, err)
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, index)
}

// ListenAndServe serves s on addr until ctx is done
func ListenAndServe(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: writeWait,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("listenAndServe: %w", err)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(),
			closeGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listenAndServe: %w", err)
		}
		return nil
	}
}

const index = `<!DOCTYPE html>
<html>
	<head>
		<title>gamerl</title>
		<script>
			const scheme = location.protocol === "https:" ? "wss://" : "ws://";
			const ws = new WebSocket(scheme + location.host + "/ws");
			ws.onmessage = function (msg) {
				const e = JSON.parse(msg.data);
				if (e.kind === "FramePlayed") {
					document.getElementById("frame").textContent =
						JSON.stringify(e.snapshot);
					return;
				}
				const log = document.getElementById("log");
				log.textContent = msg.data + "\n" + log.textContent;
			};
			ws.onclose = function () {
				document.getElementById("status").textContent = "closed";
			};
		</script>
	</head>
	<body>
		<p>Stream: <span id="status">open</span></p>
		<pre id="frame"></pre>
		<pre id="log"></pre>
	</body>
</html>
`
