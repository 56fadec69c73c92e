package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ozzyboz/rsm-starship-game/combat"
)

// Battle statuses
const (
	StatusRunning   = "running"
	StatusFinished  = "finished"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Event is emitted once before the first step and once after every step
type Event struct {
	BattleID string             `json:"bid" msgpack:"bid"`
	Step     int                `json:"n" msgpack:"n"`
	Op       string             `json:"op" msgpack:"op"`
	Desc     string             `json:"d" msgpack:"d"`
	Digest   string             `json:"h" msgpack:"h"` // blake3 of the encoded State
	State    combat.BattleState `json:"s" msgpack:"s"`
}

// EventSink receives battle events in order, from the battle's goroutine
type EventSink func(Event) error

// Battle replays a scenario against its own combat.Sim. A Battle is not
// safe for concurrent use; Run confines it to the calling goroutine.
type Battle struct {
	ID       string
	Scenario *Scenario

	sim    *combat.Sim
	fleets []*combat.Fleet
	byName map[string]*combat.Fleet
	step   int
	log    zerolog.Logger
}

// NewBattle builds the starting fleets of sc
func NewBattle(id string, sc *Scenario, log zerolog.Logger) (*Battle, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	log = log.With().Str("battle", id).Logger()
	b := &Battle{
		ID:       id,
		Scenario: sc,
		sim:      combat.NewSim(combat.WithLogger(log)),
		byName:   make(map[string]*combat.Fleet, len(sc.Fleets)),
		log:      log,
	}
	for _, fs := range sc.Fleets {
		f := b.sim.NewFleet(fs.Player, fs.Sector, fs.Ships)
		b.fleets = append(b.fleets, f)
		b.byName[fs.Player] = f
	}
	return b, nil
}

// Fleets returns the fleets in scenario order
func (b *Battle) Fleets() []*combat.Fleet {
	return b.fleets
}

// Fleet looks up a fleet by player name
func (b *Battle) Fleet(player string) *combat.Fleet {
	return b.byName[player]
}

// StepCount is the number of steps executed so far
func (b *Battle) StepCount() int {
	return b.step
}

// Done reports whether every scripted step has run
func (b *Battle) Done() bool {
	return b.step >= len(b.Scenario.Steps)
}

// Snapshot captures the current state of every fleet
func (b *Battle) Snapshot() combat.BattleState {
	return combat.Snapshot(b.step, b.fleets...)
}

// event builds the event for the current state
func (b *Battle) event(op, desc string) (Event, error) {
	state := b.Snapshot()
	raw, err := EncodeState(state)
	if err != nil {
		return Event{}, fmt.Errorf("encode state: %w", err)
	}
	return Event{
		BattleID: b.ID,
		Step:     b.step,
		Op:       op,
		Desc:     desc,
		Digest:   StateDigest(raw),
		State:    state,
	}, nil
}

// Start returns the event describing the initial deployment
func (b *Battle) Start() (Event, error) {
	return b.event("start", fmt.Sprintf("%d fleets have joined the game.", len(b.fleets)))
}

// Next executes the next scripted step
func (b *Battle) Next() (Event, error) {
	if b.Done() {
		return Event{}, fmt.Errorf("battle %s: no steps left", b.ID)
	}
	st := b.Scenario.Steps[b.step]
	desc, err := b.Apply(st)
	if err != nil {
		return Event{}, fmt.Errorf("step %d: %w", b.step, err)
	}
	b.step++
	b.log.Debug().Int("step", b.step).Str("op", st.Op).Msg(desc)
	return b.event(st.Op, desc)
}

// Run executes the remaining steps, pausing interval between them, and
// hands every event to sink. It stops early when ctx is cancelled or sink fails.
func (b *Battle) Run(ctx context.Context, interval time.Duration, sink EventSink) error {
	ev, err := b.Start()
	if err != nil {
		return err
	}
	if err := sink(ev); err != nil {
		return err
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for !b.Done() {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := b.Next()
		if err != nil {
			return err
		}
		if err := sink(ev); err != nil {
			return err
		}
	}
	return nil
}

// Apply executes one step and describes what was attempted. Rule violations
// inside the model are not errors; bad references are.
func (b *Battle) Apply(st Step) (string, error) {
	f := b.byName[st.Fleet]
	if f == nil {
		return "", fmt.Errorf("unknown fleet %q", st.Fleet)
	}

	switch st.Op {
	case OpMobilise:
		f.Mobilise(st.Sector)
		return fmt.Sprintf("%s Fleet mobilises to Sector %d.", f.PlayerName(), st.Sector), nil

	case OpMove:
		ship, err := b.ship(f, st.Ship)
		if err != nil {
			return "", err
		}
		ship.MoveSector(st.Sector)
		return fmt.Sprintf("%s Ship %d moves to Sector %d.", f.PlayerName(), st.Ship+1, st.Sector), nil

	case OpDock:
		ship, err := b.ship(f, st.Ship)
		if err != nil {
			return "", err
		}
		base, label, err := b.base(st.Target, f)
		if err != nil {
			return "", err
		}
		ship.DockWithStarbase(base)
		return fmt.Sprintf("%s has docked Ship %d in %s.", f.PlayerName(), st.Ship+1, label), nil

	case OpUndock:
		ship, err := b.ship(f, st.Ship)
		if err != nil {
			return "", err
		}
		ship.UnDockWithStarbase()
		return fmt.Sprintf("%s has undocked Ship %d.", f.PlayerName(), st.Ship+1), nil

	case OpRepair:
		ship, err := b.ship(f, st.Ship)
		if err != nil {
			return "", err
		}
		ship.Repair()
		return fmt.Sprintf("%s has repaired %s Ship %d.", f.PlayerName(), f.PlayerName(), st.Ship+1), nil

	case OpAttack:
		ship, err := b.ship(f, st.Ship)
		if err != nil {
			return "", err
		}
		target, label, err := b.target(st.Target, f)
		if err != nil {
			return "", err
		}
		ship.Attack(target)
		return fmt.Sprintf("%s Ship %d has attacked %s.", f.PlayerName(), st.Ship+1, label), nil

	case OpFleetAttack:
		target, label, err := b.target(st.Target, f)
		if err != nil {
			return "", err
		}
		f.AttackTarget(target)
		return fmt.Sprintf("%s Fleet has attacked %s.", f.PlayerName(), label), nil

	case OpSiege:
		target, label, err := b.target(st.Target, f)
		if err != nil {
			return "", err
		}
		rounds, ok := siege(f, target)
		if !ok {
			return fmt.Sprintf("%s Fleet broke off the siege of %s after %d rounds.", f.PlayerName(), label, rounds), nil
		}
		return fmt.Sprintf("%s Fleet has destroyed %s in %d rounds.", f.PlayerName(), label, rounds), nil

	case OpAddShip:
		f.AddShip(b.sim.NewStarship(st.Sector))
		return fmt.Sprintf("%s commissions Ship %d in Sector %d.", f.PlayerName(), len(f.Ships()), st.Sector), nil

	case OpAddStarbase:
		f.AddStarbase(b.sim.NewStarbase(st.Sector))
		return fmt.Sprintf("%s builds Starbase %d in Sector %d.", f.PlayerName(), len(f.Starbases()), st.Sector), nil
	}
	return "", fmt.Errorf("unknown op %q", st.Op)
}

// siege repeats fleet attacks until target is destroyed. It gives up when
// a round leaves the target's health unchanged, since nothing can attack it.
func siege(f *combat.Fleet, target combat.Targetable) (int, bool) {
	rounds := 0
	for !target.IsDestroyed() && rounds < maxSiegeRounds {
		before := target.CurrentHealth()
		f.AttackTarget(target)
		rounds++
		if target.CurrentHealth() == before {
			return rounds, false
		}
	}
	return rounds, target.IsDestroyed()
}

func (b *Battle) ship(f *combat.Fleet, i int) (*combat.Starship, error) {
	ships := f.Ships()
	if i < 0 || i >= len(ships) {
		return nil, fmt.Errorf("%s has no ship %d", f.PlayerName(), i+1)
	}
	return ships[i], nil
}

func (b *Battle) base(ref *TargetRef, own *combat.Fleet) (*combat.Starbase, string, error) {
	if ref == nil || ref.Base == nil {
		return nil, "", fmt.Errorf("target is not a starbase")
	}
	f, err := b.refFleet(ref, own)
	if err != nil {
		return nil, "", err
	}
	bases := f.Starbases()
	i := *ref.Base
	if i < 0 || i >= len(bases) {
		return nil, "", fmt.Errorf("%s has no starbase %d", f.PlayerName(), i+1)
	}
	label := fmt.Sprintf("%s Starbase", f.PlayerName())
	if len(bases) > 1 {
		label = fmt.Sprintf("%s Starbase %d", f.PlayerName(), i+1)
	}
	return bases[i], label, nil
}

func (b *Battle) target(ref *TargetRef, own *combat.Fleet) (combat.Targetable, string, error) {
	if ref == nil {
		return nil, "", fmt.Errorf("missing target")
	}
	if ref.Base != nil {
		base, label, err := b.base(ref, own)
		if err != nil {
			return nil, "", err
		}
		return base, label, nil
	}
	if ref.Ship == nil {
		return nil, "", fmt.Errorf("target names neither ship nor base")
	}
	f, err := b.refFleet(ref, own)
	if err != nil {
		return nil, "", err
	}
	ship, err := b.ship(f, *ref.Ship)
	if err != nil {
		return nil, "", err
	}
	return ship, fmt.Sprintf("%s Ship %d", f.PlayerName(), *ref.Ship+1), nil
}

func (b *Battle) refFleet(ref *TargetRef, own *combat.Fleet) (*combat.Fleet, error) {
	if ref.Fleet == "" {
		return own, nil
	}
	f := b.byName[ref.Fleet]
	if f == nil {
		return nil, fmt.Errorf("unknown fleet %q", ref.Fleet)
	}
	return f, nil
}
