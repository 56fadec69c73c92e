package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxBattles = 100

// ErrTooManyBattles is returned when the live battle limit is reached
var ErrTooManyBattles = errors.New("too many live battles")

// LiveBattle is a battle replaying in the background
type LiveBattle struct {
	ID    string
	Name  string
	Steps int

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	status string
	last   *Event
}

// Info describes the battle's progress
func (lb *LiveBattle) Info() BattleInfo {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	info := BattleInfo{ID: lb.ID, Name: lb.Name, Status: lb.status, Steps: lb.Steps}
	if lb.last != nil {
		info.Step = lb.last.Step
	}
	return info
}

// Last returns the most recent event, or nil before the battle starts
func (lb *LiveBattle) Last() *Event {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.last
}

// Wait blocks until the battle goroutine exits
func (lb *LiveBattle) Wait() {
	<-lb.done
}

func (lb *LiveBattle) setLast(ev Event) {
	lb.mu.Lock()
	lb.last = &ev
	lb.mu.Unlock()
}

func (lb *LiveBattle) setStatus(status string) {
	lb.mu.Lock()
	lb.status = status
	lb.mu.Unlock()
}

// BattleManager starts battles, journals them and feeds their events to the hub
type BattleManager struct {
	mu       sync.RWMutex
	battles  map[string]*LiveBattle
	db       *DB
	hub      *Hub
	interval time.Duration
	log      zerolog.Logger
}

// NewBattleManager creates a manager. db may be nil to skip journalling.
func NewBattleManager(db *DB, hub *Hub, interval time.Duration, log zerolog.Logger) *BattleManager {
	return &BattleManager{
		battles:  make(map[string]*LiveBattle),
		db:       db,
		hub:      hub,
		interval: interval,
		log:      log,
	}
}

// Start launches sc in its own goroutine. Each battle's model is only ever
// touched by that goroutine.
func (m *BattleManager) Start(sc *Scenario) (*LiveBattle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.battles) >= maxBattles {
		return nil, ErrTooManyBattles
	}

	id := GenerateUUID()
	battle, err := NewBattle(id, sc, m.log)
	if err != nil {
		return nil, err
	}
	if m.db != nil {
		if err := m.db.CreateBattle(id, sc); err != nil {
			return nil, fmt.Errorf("journal battle: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	lb := &LiveBattle{
		ID:     id,
		Name:   sc.Name,
		Steps:  len(sc.Steps),
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusRunning,
	}
	m.battles[id] = lb
	go m.run(ctx, battle, lb)

	m.log.Info().Str("battle", id).Str("scenario", sc.Name).Msg("battle started")
	return lb, nil
}

func (m *BattleManager) run(ctx context.Context, battle *Battle, lb *LiveBattle) {
	defer close(lb.done)
	defer lb.cancel()

	err := battle.Run(ctx, m.interval, func(ev Event) error {
		lb.setLast(ev)
		if m.db != nil {
			if err := m.db.RecordEvent(ev); err != nil {
				return fmt.Errorf("journal event: %w", err)
			}
		}
		if m.hub != nil {
			m.hub.Publish(ev)
		}
		return nil
	})

	status := StatusFinished
	switch {
	case errors.Is(err, context.Canceled):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
		m.log.Error().Err(err).Str("battle", lb.ID).Msg("battle failed")
	}
	lb.setStatus(status)

	if m.db != nil {
		if err := m.db.FinishBattle(lb.ID, status, battle.StepCount()); err != nil {
			m.log.Error().Err(err).Str("battle", lb.ID).Msg("journal battle end")
		}
	}
	if m.hub != nil {
		m.hub.End(lb.Info())
	}

	m.mu.Lock()
	delete(m.battles, lb.ID)
	m.mu.Unlock()

	m.log.Info().Str("battle", lb.ID).Str("status", status).Int("steps", battle.StepCount()).Msg("battle ended")
}

// Get returns a live battle by ID
func (m *BattleManager) Get(id string) *LiveBattle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.battles[id]
}

// List returns info about all live battles
func (m *BattleManager) List() []BattleInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]BattleInfo, 0, len(m.battles))
	for _, lb := range m.battles {
		info := lb.Info()
		if m.hub != nil {
			info.Viewers = m.hub.Viewers(lb.ID)
		}
		list = append(list, info)
	}
	return list
}

// Shutdown cancels every live battle and waits for them to stop
func (m *BattleManager) Shutdown() {
	m.mu.RLock()
	live := make([]*LiveBattle, 0, len(m.battles))
	for _, lb := range m.battles {
		live = append(live, lb)
	}
	m.mu.RUnlock()

	for _, lb := range live {
		lb.cancel()
	}
	for _, lb := range live {
		lb.Wait()
	}
}
