package combat

import (
	"fmt"
	"math"
	"slices"
)

const (
	BaseMaxDefence = 20
	BaseMaxHealth  = 500
)

// Starbase is a stationary base whose defence grows with the ships docked
// at it. Create bases with Sim.NewStarbase.
type Starbase struct {
	sim *Sim
	id  BaseID

	currentHealth      int
	currentDefStrength int // cached by CurrentDefence

	fleet  string
	sector int
	docked []ShipID // docking order, each ship at most once
}

// ID returns the base's identity
func (b *Starbase) ID() BaseID {
	return b.id
}

// dockShip adds ship to the roster. Keeping the ship's side consistent is
// the caller's job (Starship.DockWithStarbase).
func (b *Starbase) dockShip(ship *Starship) {
	if !slices.Contains(b.docked, ship.ID()) {
		b.docked = append(b.docked, ship.ID())
	}
}

// unDockShip removes ship from the roster if present
func (b *Starbase) unDockShip(ship *Starship) {
	if i := slices.Index(b.docked, ship.ID()); i >= 0 {
		b.docked = slices.Delete(b.docked, i, i+1)
	}
}

// DockedShips returns the docked ships in docking order
func (b *Starbase) DockedShips() []*Starship {
	ships := make([]*Starship, 0, len(b.docked))
	for _, id := range b.docked {
		if ship := b.sim.Ship(id); ship != nil {
			ships = append(ships, ship)
		}
	}
	return ships
}

// HasDocked reports whether ship is on the roster
func (b *Starbase) HasDocked(ship *Starship) bool {
	return slices.Contains(b.docked, ship.ID())
}

// CurrentDefence recomputes defence from remaining health plus a bonus that
// grows with both the number and the defence of docked ships
func (b *Starbase) CurrentDefence() int {
	ships := b.DockedShips()
	totalDockedDefence := 0
	for _, ship := range ships {
		totalDockedDefence += ship.CurrentDefence()
	}

	healthFactor := float64(b.currentHealth) / BaseMaxHealth
	dockedBonus := float64(totalDockedDefence) * (float64(len(ships)) / BaseMaxDefence)
	b.currentDefStrength = int(math.Floor(BaseMaxDefence*healthFactor + dockedBonus))
	return b.currentDefStrength
}

func (b *Starbase) CurrentHealth() int { return b.currentHealth }
func (b *Starbase) Sector() int        { return b.sector }
func (b *Starbase) Fleet() string      { return b.fleet }

// SetFleet stamps the owning fleet
func (b *Starbase) SetFleet(fleet string) {
	b.fleet = fleet
}

// TakeDamage lowers health, never below zero
func (b *Starbase) TakeDamage(damage int) {
	b.currentHealth -= damage
	if b.currentHealth < 0 {
		b.currentHealth = 0
	}
}

// IsDestroyed reports whether health is exhausted
func (b *Starbase) IsDestroyed() bool {
	return b.currentHealth <= 0
}

func (b *Starbase) String() string {
	return fmt.Sprintf(
		"Starbase{id=%d, health=%d/%d, def=%d, fleet=%q, sector=%d, docked=%v}",
		b.id, b.currentHealth, BaseMaxHealth, b.CurrentDefence(), b.fleet, b.sector, b.DockedShips(),
	)
}
