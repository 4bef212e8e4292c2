// Package statsserver streams a Volume's Stats over a websocket, grounded
// on the teacher's transport/ws server: an Upgrader with the same buffer
// sizes, a per-connection writer goroutine, JSON frames. It drops the
// teacher's reader loop and handshake-then-join protocol: there is no
// per-client inbound command stream to read and nothing to resume, just
// one outbound feed every client gets the same copy of.
package statsserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StatsSource is the server's view of whatever it's polling. It is
// defined here, independent of package volume, so this package never
// needs to name a voxel type parameter; callers adapt a *volume.Volume[V]
// with Func.
type StatsSource interface {
	Stats() Snapshot
}

// Func adapts a plain function to StatsSource, the way http.HandlerFunc
// adapts a function to http.Handler. Callers with a *volume.Volume[V]
// wrap its Stats method: statsserver.Func(func() statsserver.Snapshot {
// s := vol.Stats(); return statsserver.Snapshot{...} }).
type Func func() Snapshot

func (f Func) Stats() Snapshot { return f() }

// Snapshot mirrors volume.Stats. Server code only depends on this shape,
// so it never needs a type parameter.
type Snapshot struct {
	ResidentBlocks     int     `json:"resident_blocks"`
	CompressedBytes    int64   `json:"compressed_bytes"`
	UncompressedBlocks int     `json:"uncompressed_blocks"`
	Evictions          uint64  `json:"evictions"`
	CompressionRatio   float64 `json:"compression_ratio"`
}

// Server periodically queries a StatsSource and fans the result out to
// every connected websocket client.
type Server struct {
	source StatsSource
	log    *log.Logger
	period time.Duration

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// New builds a Server. The volume the StatsSource reads from must only
// ever be accessed from one goroutine at a time; callers that want to
// expose a live Volume must hand requests to its owning goroutine via a
// channel rather than call Stats() directly from here.
func New(source StatsSource, logger *log.Logger) *Server {
	return &Server{
		source: source,
		log:    logger,
		period: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// WithPeriod overrides the default one-second polling interval.
func (s *Server) WithPeriod(d time.Duration) *Server {
	s.period = d
	return s
}

// StatsHandler returns the http.HandlerFunc for GET /stats: a single JSON
// snapshot of source.Stats(), queried fresh on every request. It never
// upgrades the connection and never touches the client set StreamHandler
// maintains.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		b, err := json.Marshal(s.source.Stats())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(b)
	}
}

// StreamHandler returns the http.HandlerFunc for GET /stream: it upgrades
// the connection to a websocket and adds it to the broadcast set Run
// feeds on the configured period.
func (s *Server) StreamHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		out := make(chan []byte, 8)
		s.addClient(conn, out)
		defer s.removeClient(conn)

		for b := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// RegisterHandlers wires /stats and /stream onto mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/stats", s.StatsHandler())
	mux.HandleFunc("/stream", s.StreamHandler())
}

func (s *Server) addClient(conn *websocket.Conn, out chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = out
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	out, ok := s.clients[conn]
	if ok {
		delete(s.clients, conn)
		close(out)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Run polls source.Stats every period and broadcasts a JSON frame to
// every connected client until ctx-like cancellation via stop. On stop
// it closes every connected client's feed so StreamHandler's per-client
// goroutine unblocks from its range loop and cleans itself up, instead
// of leaking a blocked goroutine and an open connection per client.
func (s *Server) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			s.closeAllClients()
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) closeAllClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, out := range s.clients {
		delete(s.clients, conn)
		close(out)
	}
}

func (s *Server) broadcast() {
	b, err := json.Marshal(s.source.Stats())
	if err != nil {
		if s.log != nil {
			s.log.Printf("statsserver: marshal: %v", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, out := range s.clients {
		select {
		case out <- b:
		default:
			if s.log != nil {
				s.log.Printf("statsserver: client %s falling behind, dropping frame", conn.RemoteAddr())
			}
		}
	}
}
