// Package rpcserver exposes the daemon's RPC surface over
// HTTP, using gorilla/mux for routing and gorilla/websocket for the
// live status push.
package rpcserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/w1xm/talond/internal/daemon"
)

// Server fronts a *daemon.Daemon with an HTTP/JSON RPC surface plus a
// websocket status feed.
type Server struct {
	d *daemon.Daemon

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     daemon.StatusRecord
}

// New wraps d. Call Poll in a background goroutine to keep the status
// feed current.
func New(d *daemon.Daemon) *Server {
	s := &Server{d: d}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router builds the mux.Router exposing the RPC surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/ws", s.handleStatusSocket)
	r.HandleFunc("/rpc/initialize", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Initialize(ctx, caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/shutdown", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Shutdown(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/find_homes", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Home(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/find_limits", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Limits(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/stop", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Stop(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/ping", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Ping(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/slew_altaz", s.handle(func(ctx context.Context, caller string, q url) error {
		alt, az, err := q.floats("alt", "az")
		if err != nil {
			return err
		}
		return s.d.SlewAltAz(caller, alt, az)
	})).Methods("POST")
	r.HandleFunc("/rpc/slew_hadec", s.handle(func(ctx context.Context, caller string, q url) error {
		ha, dec, err := q.floats("ha", "dec")
		if err != nil {
			return err
		}
		return s.d.SlewHADec(caller, ha, dec)
	})).Methods("POST")
	r.HandleFunc("/rpc/slew_radec", s.handle(func(ctx context.Context, caller string, q url) error {
		ra, dec, err := q.floats("ra", "dec")
		if err != nil {
			return err
		}
		return s.d.SlewRADec(caller, ra, dec)
	})).Methods("POST")
	r.HandleFunc("/rpc/track_radec", s.handle(func(ctx context.Context, caller string, q url) error {
		ra, dec, err := q.floats("ra", "dec")
		if err != nil {
			return err
		}
		return s.d.TrackRADec(caller, ra, dec)
	})).Methods("POST")
	r.HandleFunc("/rpc/offset_radec", s.handle(func(ctx context.Context, caller string, q url) error {
		dra, ddec, err := q.floats("dra", "ddec")
		if err != nil {
			return err
		}
		return s.d.OffsetRADec(caller, dra, ddec)
	})).Methods("POST")
	r.HandleFunc("/rpc/park", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.Park(caller, q.Get("name"))
	})).Methods("POST")
	r.HandleFunc("/rpc/telescope_focus", s.handle(func(ctx context.Context, caller string, q url) error {
		um, err := q.float("microns")
		if err != nil {
			return err
		}
		return s.d.TelescopeFocus(caller, um)
	})).Methods("POST")
	r.HandleFunc("/rpc/cover_open", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.OpenCover(caller)
	})).Methods("POST")
	r.HandleFunc("/rpc/cover_close", s.handle(func(ctx context.Context, caller string, q url) error {
		return s.d.CloseCover(caller)
	})).Methods("POST")
	return r
}

// url is the subset of http.Request.URL.Query() this package needs,
// named to keep the handler signatures above readable.
type url = urlValues

type urlValues interface {
	Get(string) string
}

func (s *Server) handle(fn func(ctx context.Context, caller string, q url) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(r.Context(), r.RemoteAddr, queryValues(r.URL.Query()))
		writeResult(w, err)
	}
}

type queryValues map[string][]string

func (q queryValues) Get(key string) string {
	v := q[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (q queryValues) float(key string) (float64, error) {
	return strconv.ParseFloat(q.Get(key), 64)
}

func (q queryValues) floats(k1, k2 string) (float64, float64, error) {
	a, err := q.float(k1)
	if err != nil {
		return 0, 0, err
	}
	b, err := q.float(k2)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

type rpcResult struct {
	Code    daemon.Code `json:"code"`
	Message string      `json:"message,omitempty"`
}

func writeResult(w http.ResponseWriter, err error) {
	res := rpcResult{Code: daemon.CodeFor(err)}
	if err != nil {
		res.Message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if jsonErr := json.NewEncoder(w).Encode(res); jsonErr != nil {
		log.Print(jsonErr)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.d.Status()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Print(err)
	}
}

func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				conn.Close()
				return
			}
		}
	}()

	send := func(status daemon.StatusRecord) {
		data, err := json.Marshal(status)
		if err != nil {
			log.Print(err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Print(err)
		}
	}

	s.statusMu.RLock()
	send(s.status)
	s.statusMu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		send(status)
	}
}

// Poll refreshes the cached status for the websocket feed at the given
// period until ctx is canceled. Call it in its own goroutine.
func (s *Server) Poll(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.d.Status()
			s.statusMu.Lock()
			s.status = status
			s.statusCond.Broadcast()
			s.statusMu.Unlock()
		}
	}
}
