// Package combat models fleets of starships and starbases that move between
// sectors, dock, repair and attack each other.
//
// Every operation that fails its preconditions does nothing: there are no
// error returns in this package. The model is deterministic and must be
// driven from a single goroutine.
package combat

// Targetable is anything a starship can attack
type Targetable interface {
	CurrentHealth() int
	// CurrentDefence recomputes the defence strength and caches it
	CurrentDefence() int
	Sector() int
	Fleet() string
	SetFleet(fleet string)
	TakeDamage(amount int)
	IsDestroyed() bool
}

// MinDamage is the least a successful attack ever deals
const MinDamage = 5

var (
	_ Targetable = (*Starship)(nil)
	_ Targetable = (*Starbase)(nil)
)

// sameFleet is the only friendliness test. Two unset fleets are friendly.
func sameFleet(a, b Targetable) bool {
	return a.Fleet() == b.Fleet()
}

// attackDamage returns the damage dealt by an attack of atk against def
func attackDamage(atk, def int) int {
	return max(atk-def, MinDamage)
}
