package combat

import (
	"fmt"
	"slices"
)

// Fleet is everything one player owns. Entities are only ever added.
type Fleet struct {
	sim        *Sim
	playerName string
	ships      []*Starship
	starbases  []*Starbase
}

// NewFleet creates a fleet with one starbase and numberOfStarships ships, all in sector
func (s *Sim) NewFleet(playerName string, sector, numberOfStarships int) *Fleet {
	f := &Fleet{sim: s, playerName: playerName}

	f.AddStarbase(s.NewStarbase(sector))
	for i := 0; i < numberOfStarships; i++ {
		f.AddShip(s.NewStarship(sector))
	}

	s.log.Debug().
		Str("fleet", playerName).
		Int("sector", sector).
		Int("ships", numberOfStarships).
		Msg("fleet created")
	return f
}

// PlayerName returns the owning player, which is also the fleet identifier
func (f *Fleet) PlayerName() string {
	return f.playerName
}

// AddShip appends ship and claims it for this fleet. A ship already owned
// elsewhere is claimed too but stays listed in its old fleet. Ships from
// another Sim are ignored.
func (f *Fleet) AddShip(ship *Starship) {
	if ship.sim != f.sim {
		f.rejectForeign("addShip", int(ship.id))
		return
	}
	f.ships = append(f.ships, ship)
	ship.SetFleet(f.playerName)
}

// AddStarbase appends base and claims it for this fleet. Bases from another
// Sim are ignored.
func (f *Fleet) AddStarbase(base *Starbase) {
	if base.sim != f.sim {
		f.rejectForeign("addStarbase", int(base.id))
		return
	}
	f.starbases = append(f.starbases, base)
	base.SetFleet(f.playerName)
}

func (f *Fleet) rejectForeign(op string, id int) {
	f.sim.log.Debug().
		Str("fleet", f.playerName).
		Int("id", id).
		Str("op", op).
		Str("reason", "foreign arena").
		Msg("fleet change rejected")
}

// Ships returns the fleet's ships in insertion order
func (f *Fleet) Ships() []*Starship {
	return slices.Clone(f.ships)
}

// Starbases returns the fleet's bases in insertion order
func (f *Fleet) Starbases() []*Starbase {
	return slices.Clone(f.starbases)
}

// Mobilise moves every undocked ship to sector. Docked ships are skipped
// without touching their repair timers.
func (f *Fleet) Mobilise(sector int) {
	for _, ship := range f.ships {
		if !ship.IsDocked() {
			ship.MoveSector(sector)
		}
	}
}

// AttackTarget has every undocked ship in the target's sector attack it.
// Friendly targets are ignored.
func (f *Fleet) AttackTarget(target Targetable) {
	if f.playerName == target.Fleet() {
		f.sim.log.Debug().
			Str("fleet", f.playerName).
			Str("reason", "friendly target").
			Msg("fleet attack rejected")
		return
	}

	for _, ship := range f.ships {
		if !ship.IsDocked() && ship.Sector() == target.Sector() {
			ship.Attack(target)
		}
	}
}

func (f *Fleet) String() string {
	return fmt.Sprintf("Fleet{playerName=%q, ships=%v, starbases=%v}", f.playerName, f.ships, f.starbases)
}
