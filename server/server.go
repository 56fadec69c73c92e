package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxScenarioBytes = 64 << 10
	maxListBattles   = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// ipLimiters hands out one token bucket per client IP
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiters(limit float64, burst int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

func (l *ipLimiters) Allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Server exposes battles over HTTP: launching them, browsing the journal,
// issuing spectator tokens and streaming live events.
type Server struct {
	hub       *Hub
	battles   *BattleManager
	db        *DB
	auth      *Auth
	limiters  *ipLimiters
	publicURL string
	scenario  *Scenario // played when POST /battles has no body
	log       zerolog.Logger
}

// NewServer wires the HTTP layer
func NewServer(cfg *Config, hub *Hub, battles *BattleManager, db *DB, auth *Auth, scenario *Scenario, log zerolog.Logger) *Server {
	return &Server{
		hub:       hub,
		battles:   battles,
		db:        db,
		auth:      auth,
		limiters:  newIPLimiters(cfg.Spectate.RateLimit, cfg.Spectate.RateBurst),
		publicURL: cfg.HTTP.PublicURL,
		scenario:  scenario,
		log:       log,
	}
}

// Routes configures HTTP routes
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /battles", s.handleStart)
	mux.HandleFunc("GET /battles", s.handleList)
	mux.HandleFunc("GET /battles/live", s.handleLive)
	mux.HandleFunc("GET /battles/{id}", s.handleBattle)
	mux.HandleFunc("GET /battles/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /battles/{id}/snapshot/{step}", s.handleSnapshot)
	mux.HandleFunc("POST /battles/{id}/token", s.handleToken)
	mux.HandleFunc("GET /battles/{id}/qr", s.handleQR)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorMsg{Msg: msg})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScenarioBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	sc := s.scenario
	if len(body) > 0 {
		sc, err = ParseScenario(body)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	lb, err := s.battles.Start(sc)
	if errors.Is(err, ErrTooManyBattles) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("start battle")
		s.writeError(w, http.StatusInternalServerError, "could not start battle")
		return
	}
	s.writeJSON(w, http.StatusCreated, StartResponse{ID: lb.ID, Name: lb.Name})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := maxListBattles
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = Clamp(n, 1, maxListBattles)
	}
	rows, err := s.db.ListBattles(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list battles")
		s.writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if rows == nil {
		rows = []BattleRow{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.battles.List())
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	row, err := s.db.GetBattle(r.PathValue("id"))
	if err != nil {
		s.log.Error().Err(err).Msg("get battle")
		s.writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if row == nil {
		s.writeError(w, http.StatusNotFound, "unknown battle")
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.db.GetEvents(r.PathValue("id"))
	if err != nil {
		s.log.Error().Err(err).Msg("get events")
		s.writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if len(events) == 0 {
		s.writeError(w, http.StatusNotFound, "unknown battle")
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad step")
		return
	}
	state, err := s.db.LoadSnapshot(r.PathValue("id"), step)
	if err != nil {
		s.log.Error().Err(err).Msg("load snapshot")
		s.writeError(w, http.StatusInternalServerError, "could not load snapshot")
		return
	}
	if state == nil {
		s.writeError(w, http.StatusNotFound, "unknown step")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.limiters.Allow(extractIP(r)) {
		s.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	id := r.PathValue("id")
	if s.battles.Get(id) == nil {
		s.writeError(w, http.StatusNotFound, "battle is not live")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	token, err := s.auth.IssueToken(id, req.Passphrase)
	if errors.Is(err, ErrBadPassphrase) {
		s.writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("issue token")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, TokenResponse{Token: token, WSURL: WSURL(s.publicURL, token)})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := QRCode(WatchURL(s.publicURL, r.PathValue("id")))
	if err != nil {
		s.log.Error().Err(err).Msg("render qr")
		s.writeError(w, http.StatusInternalServerError, "could not render code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	battleID, err := s.auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	lb := s.battles.Get(battleID)
	if lb == nil {
		http.Error(w, "battle is not live", http.StatusNotFound)
		return
	}

	ip := extractIP(r)
	if !s.hub.Admit(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Release(ip)
		s.log.Debug().Err(err).Msg("upgrade error")
		return
	}

	client := NewClient(s.hub, conn, ip, battleID)
	s.hub.Subscribe(client, Envelope{T: MsgWelcome, Data: lb.Info()})

	go client.WritePump()
	go client.ReadPump()
}
