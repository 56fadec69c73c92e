package combat

// ShipState is a point-in-time copy of a starship
type ShipState struct {
	ID          int    `json:"id" msgpack:"id"`
	Fleet       string `json:"f" msgpack:"f"`
	Sector      int    `json:"sec" msgpack:"sec"`
	HP          int    `json:"hp" msgpack:"hp"`
	MaxHP       int    `json:"mhp" msgpack:"mhp"`
	Crew        int    `json:"crew" msgpack:"crew"`
	Atk         int    `json:"atk" msgpack:"atk"`
	Def         int    `json:"def" msgpack:"def"`
	RepairTurns int    `json:"rt" msgpack:"rt"`
	Docked      bool   `json:"dk" msgpack:"dk"`
	DockedAt    int    `json:"at,omitempty" msgpack:"at,omitempty"` // base id, 0 while undocked
	Destroyed   bool   `json:"x,omitempty" msgpack:"x,omitempty"`
}

// BaseState is a point-in-time copy of a starbase
type BaseState struct {
	ID        int    `json:"id" msgpack:"id"`
	Fleet     string `json:"f" msgpack:"f"`
	Sector    int    `json:"sec" msgpack:"sec"`
	HP        int    `json:"hp" msgpack:"hp"`
	MaxHP     int    `json:"mhp" msgpack:"mhp"`
	Def       int    `json:"def" msgpack:"def"`
	Docked    []int  `json:"dk" msgpack:"dk"`
	Destroyed bool   `json:"x,omitempty" msgpack:"x,omitempty"`
}

// FleetState is a point-in-time copy of a fleet and everything it lists
type FleetState struct {
	Player string      `json:"p" msgpack:"p"`
	Ships  []ShipState `json:"s" msgpack:"s"`
	Bases  []BaseState `json:"b" msgpack:"b"`
}

// BattleState is the snapshot of all fleets taking part in a battle
type BattleState struct {
	Step   int          `json:"step" msgpack:"step"`
	Fleets []FleetState `json:"fl" msgpack:"fl"`
}

// ToState converts to a snapshot. Strengths are recomputed, so their caches refresh.
func (s *Starship) ToState() ShipState {
	return ShipState{
		ID:          int(s.id),
		Fleet:       s.fleet,
		Sector:      s.sector,
		HP:          s.currentHealth,
		MaxHP:       ShipMaxHealth,
		Crew:        s.currentCrew,
		Atk:         s.CurrentAtkStrength(),
		Def:         s.CurrentDefence(),
		RepairTurns: s.skipTurns,
		Docked:      s.docked,
		DockedAt:    int(s.dockedBase),
		Destroyed:   s.IsDestroyed(),
	}
}

// ToState converts to a snapshot
func (b *Starbase) ToState() BaseState {
	docked := make([]int, len(b.docked))
	for i, id := range b.docked {
		docked[i] = int(id)
	}
	return BaseState{
		ID:        int(b.id),
		Fleet:     b.fleet,
		Sector:    b.sector,
		HP:        b.currentHealth,
		MaxHP:     BaseMaxHealth,
		Def:       b.CurrentDefence(),
		Docked:    docked,
		Destroyed: b.IsDestroyed(),
	}
}

// ToState converts to a snapshot
func (f *Fleet) ToState() FleetState {
	fs := FleetState{
		Player: f.playerName,
		Ships:  make([]ShipState, 0, len(f.ships)),
		Bases:  make([]BaseState, 0, len(f.starbases)),
	}
	for _, ship := range f.ships {
		fs.Ships = append(fs.Ships, ship.ToState())
	}
	for _, base := range f.starbases {
		fs.Bases = append(fs.Bases, base.ToState())
	}
	return fs
}

// Snapshot captures fleets in the given order
func Snapshot(step int, fleets ...*Fleet) BattleState {
	bs := BattleState{Step: step, Fleets: make([]FleetState, 0, len(fleets))}
	for _, f := range fleets {
		bs.Fleets = append(bs.Fleets, f.ToState())
	}
	return bs
}
