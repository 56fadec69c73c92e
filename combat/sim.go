package combat

import "github.com/rs/zerolog"

// ShipID identifies a starship within a Sim
type ShipID int

// BaseID identifies a starbase within a Sim. Bases are numbered independently of ships.
type BaseID int

// IDGen hands out monotonically increasing ids, one sequence per entity kind
type IDGen struct {
	nextShip ShipID
	nextBase BaseID
}

// NewIDGen creates a generator whose first ids are shipStart+1 and baseStart+1
func NewIDGen(shipStart, baseStart int) *IDGen {
	return &IDGen{nextShip: ShipID(shipStart), nextBase: BaseID(baseStart)}
}

// NextShip returns a fresh ship id
func (g *IDGen) NextShip() ShipID {
	g.nextShip++
	return g.nextShip
}

// NextBase returns a fresh base id
func (g *IDGen) NextBase() BaseID {
	g.nextBase++
	return g.nextBase
}

// Reset rewinds both sequences. Only safe when no entities from the old sequence remain in use.
func (g *IDGen) Reset() {
	g.nextShip = 0
	g.nextBase = 0
}

// Sim is the arena every entity lives in. It owns id assignment and
// resolves the ship <-> base references used for docking.
// A Sim and everything built from it belong to a single goroutine.
type Sim struct {
	ids   *IDGen
	ships map[ShipID]*Starship
	bases map[BaseID]*Starbase
	log   zerolog.Logger
}

// Option configures a Sim
type Option func(*Sim)

// WithIDGen injects the id generator
func WithIDGen(g *IDGen) Option {
	return func(s *Sim) { s.ids = g }
}

// WithLogger sets the logger used for rejected actions
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sim) { s.log = l }
}

// NewSim creates an empty arena
func NewSim(opts ...Option) *Sim {
	s := &Sim{
		ids:   NewIDGen(0, 0),
		ships: make(map[ShipID]*Starship),
		bases: make(map[BaseID]*Starbase),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStarship creates a ship with full health and crew in the given sector
func (s *Sim) NewStarship(sector int) *Starship {
	ship := &Starship{
		sim:           s,
		id:            s.ids.NextShip(),
		currentHealth: ShipMaxHealth,
		currentCrew:   ShipMaxCrew,
		sector:        sector,
	}
	s.ships[ship.id] = ship
	return ship
}

// NewStarbase creates a base at full health fixed in the given sector
func (s *Sim) NewStarbase(sector int) *Starbase {
	base := &Starbase{
		sim:           s,
		id:            s.ids.NextBase(),
		currentHealth: BaseMaxHealth,
		sector:        sector,
	}
	s.bases[base.id] = base
	return base
}

// Ship looks up a ship by id
func (s *Sim) Ship(id ShipID) *Starship {
	return s.ships[id]
}

// Base looks up a base by id
func (s *Sim) Base(id BaseID) *Starbase {
	return s.bases[id]
}

// ShipCount returns the number of ships created in this arena
func (s *Sim) ShipCount() int {
	return len(s.ships)
}

// BaseCount returns the number of bases created in this arena
func (s *Sim) BaseCount() int {
	return len(s.bases)
}
