package combat

import "fmt"

const (
	ShipMaxAttack  = 30
	ShipMaxDefence = 10
	ShipMaxCrew    = 10
	ShipMaxHealth  = 100
	ShipMinCrew    = 1 // crew losses never empty a ship
)

// Starship is a mobile combat unit. Create ships with Sim.NewStarship.
type Starship struct {
	sim *Sim
	id  ShipID

	currentHealth      int
	currentCrew        int
	currentAtkStrength int // cached by CurrentAtkStrength
	currentDefStrength int // cached by CurrentDefence

	fleet     string
	sector    int
	skipTurns int // repair turns left, consumed by underRepair

	docked     bool
	dockedBase BaseID // zero while undocked
}

// ID returns the ship's identity. Two ships are equal iff their ids are.
func (s *Starship) ID() ShipID {
	return s.id
}

// underRepair is the gate shared by every action. Each call made while the
// timer is running burns one turn and reports true.
func (s *Starship) underRepair() bool {
	if s.skipTurns > 0 {
		s.skipTurns--
		return true
	}
	return false
}

func (s *Starship) reject(op, reason string) {
	s.sim.log.Debug().
		Int("ship", int(s.id)).
		Str("fleet", s.fleet).
		Str("op", op).
		Str("reason", reason).
		Msg("action rejected")
}

// MoveSector moves the ship unless it is docked or under repair.
// Sectors are not validated.
func (s *Starship) MoveSector(newSector int) {
	if s.underRepair() {
		s.reject("move", "under repair")
		return
	}
	if s.docked {
		s.reject("move", "docked")
		return
	}
	s.sector = newSector
}

// Attack damages target if both share a sector and belong to different fleets
func (s *Starship) Attack(target Targetable) {
	if s.underRepair() {
		s.reject("attack", "under repair")
		return
	}
	if s.docked {
		s.reject("attack", "docked")
		return
	}
	if s.sector != target.Sector() {
		s.reject("attack", "sector mismatch")
		return
	}
	if sameFleet(s, target) {
		s.reject("attack", "friendly target")
		return
	}

	damage := attackDamage(s.CurrentAtkStrength(), target.CurrentDefence())
	target.TakeDamage(damage)
}

// DockWithStarbase docks at base when the ship is free, in the base's sector and in its fleet
func (s *Starship) DockWithStarbase(base *Starbase) {
	if s.underRepair() {
		s.reject("dock", "under repair")
		return
	}
	if s.docked {
		s.reject("dock", "already docked")
		return
	}
	if s.sim != base.sim {
		s.reject("dock", "foreign arena")
		return
	}
	if s.sector != base.Sector() {
		s.reject("dock", "sector mismatch")
		return
	}
	if !sameFleet(s, base) {
		s.reject("dock", "foreign base")
		return
	}

	s.dockedBase = base.ID()
	s.docked = true
	base.dockShip(s)
}

// UnDockWithStarbase leaves the current base. While under repair nothing
// happens, the docked flag included.
func (s *Starship) UnDockWithStarbase() {
	if s.underRepair() {
		s.reject("undock", "under repair")
		return
	}
	if s.dockedBase != 0 {
		if base := s.sim.Base(s.dockedBase); base != nil {
			base.unDockShip(s)
		}
		s.dockedBase = 0
	}
	s.docked = false
}

// Repair restores health and crew while docked and starts the repair timer.
// The timer depends on how damaged the ship was; a ship at full health
// still waits one turn.
func (s *Starship) Repair() {
	if !s.docked {
		s.reject("repair", "not docked")
		return
	}

	healthPercentage := float64(s.currentHealth) / float64(ShipMaxHealth) * 100
	switch {
	case healthPercentage < 25:
		s.skipTurns = 4
	case healthPercentage < 50:
		s.skipTurns = 3
	case healthPercentage < 75:
		s.skipTurns = 2
	default:
		s.skipTurns = 1
	}

	s.currentHealth = ShipMaxHealth
	s.currentCrew = ShipMaxCrew
}

// IsDocked reports whether the ship is attached to a starbase
func (s *Starship) IsDocked() bool {
	return s.docked
}

// DockedBase returns the base the ship is docked at, or nil
func (s *Starship) DockedBase() *Starbase {
	if !s.docked || s.dockedBase == 0 {
		return nil
	}
	return s.sim.Base(s.dockedBase)
}

// RepairTurns returns how many blocked actions remain before the ship is operational
func (s *Starship) RepairTurns() int {
	return s.skipTurns
}

// CurrentAtkStrength recomputes attack strength from the remaining crew
func (s *Starship) CurrentAtkStrength() int {
	s.currentAtkStrength = ceilDiv(ShipMaxAttack*s.currentCrew, ShipMaxHealth)
	return s.currentAtkStrength
}

// CurrentDefence recomputes defence strength from health and crew
func (s *Starship) CurrentDefence() int {
	// health and crew are never negative, so integer division is the floor
	s.currentDefStrength = ShipMaxDefence * (s.currentHealth + s.currentCrew) / (ShipMaxHealth + ShipMaxCrew)
	return s.currentDefStrength
}

func (s *Starship) CurrentHealth() int { return s.currentHealth }
func (s *Starship) CurrentCrew() int   { return s.currentCrew }
func (s *Starship) Sector() int        { return s.sector }
func (s *Starship) Fleet() string      { return s.fleet }

// SetFleet stamps the owning fleet
func (s *Starship) SetFleet(fleet string) {
	s.fleet = fleet
}

// TakeDamage lowers health (floor 0) and kills crew in proportion to the
// damage, using the crew count from before the hit (floor 1)
func (s *Starship) TakeDamage(damage int) {
	crewBefore := s.currentCrew

	s.currentHealth -= damage
	if s.currentHealth < 0 {
		s.currentHealth = 0
	}

	s.currentCrew -= ceilDiv(damage*crewBefore, ShipMaxHealth)
	if s.currentCrew < ShipMinCrew {
		s.currentCrew = ShipMinCrew
	}
}

// IsDestroyed reports whether health is exhausted. Destroyed ships stay in play.
func (s *Starship) IsDestroyed() bool {
	return s.currentHealth <= 0
}

func (s *Starship) String() string {
	return fmt.Sprintf(
		"Starship{id=%d, health=%d/%d, crew=%d/%d, atk=%d, def=%d, fleet=%q, sector=%d, skipTurns=%d, docked=%t}",
		s.id, s.currentHealth, ShipMaxHealth, s.currentCrew, ShipMaxCrew,
		s.currentAtkStrength, s.currentDefStrength, s.fleet, s.sector, s.skipTurns, s.docked,
	)
}

// ceilDiv divides rounding toward positive infinity
func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}
