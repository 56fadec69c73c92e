package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
	// how long an ended battle's final frame is replayed to late joiners
	endedRetention = time.Minute
)

// outbound is one message fanned out to every spectator of a battle
type outbound struct {
	battleID string
	data     []byte
	binary   bool
	end      bool // closes the battle's spectators after delivery
}

// join is a spectator entering the hub along with its greeting
type join struct {
	client  *Client
	welcome []byte
}

type endedBattle struct {
	last []byte
	data []byte
	at   time.Time
}

// Hub tracks spectator connections and fans battle events out to them
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	last       map[string][]byte // latest event per live battle
	ended      map[string]endedBattle
	register   chan join
	unregister chan *Client
	broadcast  chan outbound
	stop       chan struct{}
	stopOnce   sync.Once
	// slots per IP, taken in HTTP handlers before the upgrade
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	log zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		last:       make(map[string][]byte),
		ended:      make(map[string]endedBattle),
		register:   make(chan join, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan outbound, 256),
		stop:       make(chan struct{}),
		ipConns:    make(map[string]int),
		log:        log,
	}
}

// Admit reserves a connection slot for ip, or reports false when ip or the
// server is at its limit. Every admitted connection must be Released.
func (h *Hub) Admit(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns || h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	h.ipConns[ip]++
	h.totalConns++
	return true
}

// Release frees a slot taken by Admit
func (h *Hub) Release(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if n := h.ipConns[ip] - 1; n > 0 {
		h.ipConns[ip] = n
	} else {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister/broadcast until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case j := <-h.register:
			h.mu.Lock()
			h.join(j)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.fanOut(msg)
			h.mu.Unlock()

		case <-h.stop:
			return
		}
	}
}

// join greets a spectator and catches it up. Spectators of a battle that
// already ended get the final frame and are closed straight away.
// Caller holds h.mu.
func (h *Hub) join(j join) {
	c := j.client
	c.SendRaw(j.welcome)
	if e, ok := h.ended[c.battleID]; ok {
		if e.last != nil {
			c.SendBinary(e.last)
		}
		c.SendRaw(e.data)
		close(c.send)
		return
	}
	if last, ok := h.last[c.battleID]; ok {
		c.SendBinary(last)
	}
	h.clients[c] = true
}

// fanOut delivers msg to the battle's spectators. Caller holds h.mu.
func (h *Hub) fanOut(msg outbound) {
	for client := range h.clients {
		if client.battleID != msg.battleID {
			continue
		}
		if msg.binary {
			client.SendBinary(msg.data)
		} else {
			client.SendRaw(msg.data)
		}
		if msg.end {
			delete(h.clients, client)
			close(client.send)
		}
	}

	switch {
	case msg.end:
		now := time.Now()
		h.ended[msg.battleID] = endedBattle{last: h.last[msg.battleID], data: msg.data, at: now}
		delete(h.last, msg.battleID)
		for id, e := range h.ended {
			if now.Sub(e.at) > endedRetention {
				delete(h.ended, id)
			}
		}
	case msg.binary:
		h.last[msg.battleID] = msg.data
	}
}

// Subscribe hands client to the hub. The welcome goes out first, then the
// battle's latest event, so nothing published meanwhile is missed.
func (h *Hub) Subscribe(client *Client, welcome interface{}) {
	data, err := json.Marshal(welcome)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal welcome")
		return
	}
	select {
	case h.register <- join{client: client, welcome: data}:
	case <-h.stop:
	}
}

// Stop ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Publish sends a battle event to its spectators as a msgpack frame
func (h *Hub) Publish(ev Event) {
	data, err := msgpack.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("battle", ev.BattleID).Msg("encode event")
		return
	}
	h.send(outbound{battleID: ev.BattleID, data: data, binary: true})
}

// End tells a battle's spectators that it is over and closes their
// connections
func (h *Hub) End(info BattleInfo) {
	data, err := json.Marshal(Envelope{T: MsgEnd, Data: info})
	if err != nil {
		h.log.Error().Err(err).Str("battle", info.ID).Msg("encode end")
		return
	}
	h.send(outbound{battleID: info.ID, data: data, end: true})
}

func (h *Hub) send(msg outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.stop:
	}
}

// Viewers returns the number of spectators of a battle
func (h *Hub) Viewers(battleID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.battleID == battleID {
			n++
		}
	}
	return n
}

// Ended reports whether the hub has seen battleID end
func (h *Hub) Ended(battleID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ended[battleID]
	return ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the number of admitted connections
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
