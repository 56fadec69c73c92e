package combat

import "testing"

// damagedShip returns a ship docked at a friendly base with the given health
func damagedShip(t *testing.T, health int) (*Starship, *Starbase) {
	t.Helper()
	sim := NewSim()
	ship := sim.NewStarship(1)
	base := sim.NewStarbase(1)
	ship.TakeDamage(ShipMaxHealth - health)
	ship.DockWithStarbase(base)
	if !ship.IsDocked() {
		t.Fatalf("expected ship to dock")
	}
	return ship, base
}

func TestNewStarship(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(7)
	if ship.CurrentHealth() != ShipMaxHealth {
		t.Errorf("expected health %d, got %d", ShipMaxHealth, ship.CurrentHealth())
	}
	if ship.CurrentCrew() != ShipMaxCrew {
		t.Errorf("expected crew %d, got %d", ShipMaxCrew, ship.CurrentCrew())
	}
	if ship.Sector() != 7 {
		t.Errorf("expected sector 7, got %d", ship.Sector())
	}
	if ship.Fleet() != "" {
		t.Errorf("expected no fleet, got %q", ship.Fleet())
	}
	if ship.IsDocked() || ship.RepairTurns() != 0 {
		t.Error("new ship should be undocked and operational")
	}
}

func TestStarshipTakeDamage(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)

	ship.TakeDamage(20)
	if ship.CurrentHealth() != 80 {
		t.Errorf("expected health 80, got %d", ship.CurrentHealth())
	}
	// ceil(20 * 10 / 100) = 2
	if ship.CurrentCrew() != 8 {
		t.Errorf("expected crew 8, got %d", ship.CurrentCrew())
	}

	// ceil(15 * 8 / 100) = 2
	ship.TakeDamage(15)
	if ship.CurrentHealth() != 65 || ship.CurrentCrew() != 6 {
		t.Errorf("expected 65/6, got %d/%d", ship.CurrentHealth(), ship.CurrentCrew())
	}
}

func TestStarshipDamageFloors(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)
	ship.TakeDamage(1000)

	if ship.CurrentHealth() != 0 {
		t.Errorf("expected health 0, got %d", ship.CurrentHealth())
	}
	if ship.CurrentCrew() != ShipMinCrew {
		t.Errorf("expected crew %d, got %d", ShipMinCrew, ship.CurrentCrew())
	}
	if !ship.IsDestroyed() {
		t.Error("expected ship to be destroyed")
	}
}

func TestStarshipCrewFormula(t *testing.T) {
	for _, tc := range []struct {
		crew, damage int
	}{
		{10, 1}, {10, 5}, {10, 33}, {7, 14}, {3, 99}, {1, 50}, {9, 100},
	} {
		sim := NewSim()
		ship := sim.NewStarship(1)
		ship.currentCrew = tc.crew
		ship.TakeDamage(tc.damage)

		want := max(ShipMinCrew, tc.crew-ceilDiv(tc.damage*tc.crew, 100))
		if ship.CurrentCrew() != want {
			t.Errorf("crew %d, damage %d: expected crew %d, got %d", tc.crew, tc.damage, want, ship.CurrentCrew())
		}
	}
}

func TestStarshipStrengths(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)

	if atk := ship.CurrentAtkStrength(); atk != 3 {
		t.Errorf("expected attack 3, got %d", atk)
	}
	if def := ship.CurrentDefence(); def != ShipMaxDefence {
		t.Errorf("expected defence %d, got %d", ShipMaxDefence, def)
	}

	ship.currentHealth = 80
	ship.currentCrew = 8
	// floor(10 * 88 / 110) = 8
	if def := ship.CurrentDefence(); def != 8 {
		t.Errorf("expected defence 8, got %d", def)
	}

	ship.currentCrew = 1
	if atk := ship.CurrentAtkStrength(); atk != 1 {
		t.Errorf("expected attack 1 with one crew, got %d", atk)
	}

	ship.currentHealth = 0
	// floor(10 * 1 / 110) = 0
	if def := ship.CurrentDefence(); def != 0 {
		t.Errorf("expected defence 0, got %d", def)
	}
}

func TestStarshipAttack(t *testing.T) {
	sim := NewSim()
	attacker := sim.NewStarship(1)
	target := sim.NewStarship(1)
	attacker.SetFleet("A")
	target.SetFleet("B")

	attacker.Attack(target)
	// max(3 - 10, 5) = 5
	if target.CurrentHealth() != 95 {
		t.Errorf("expected health 95, got %d", target.CurrentHealth())
	}

	base := sim.NewStarbase(1)
	base.SetFleet("B")
	attacker.Attack(base)
	if base.CurrentHealth() != BaseMaxHealth-MinDamage {
		t.Errorf("expected base health %d, got %d", BaseMaxHealth-MinDamage, base.CurrentHealth())
	}
}

func TestStarshipAttackUsesDamageFormula(t *testing.T) {
	sim := NewSim()
	attacker := sim.NewStarship(1)
	target := sim.NewStarship(1)
	attacker.SetFleet("A")
	target.SetFleet("B")

	// defence 0 against attack 3 still deals the minimum
	target.currentHealth = 1
	target.currentCrew = 1
	attacker.Attack(target)
	if target.CurrentHealth() != 0 {
		t.Errorf("expected health 0, got %d", target.CurrentHealth())
	}
}

func TestStarshipAttackRejected(t *testing.T) {
	sim := NewSim()
	attacker := sim.NewStarship(1)
	attacker.SetFleet("A")

	friend := sim.NewStarship(1)
	friend.SetFleet("A")
	attacker.Attack(friend)
	if friend.CurrentHealth() != ShipMaxHealth || friend.CurrentCrew() != ShipMaxCrew {
		t.Error("friendly ship should not take damage")
	}

	attacker.Attack(attacker)
	if attacker.CurrentHealth() != ShipMaxHealth {
		t.Error("ship should not damage itself")
	}

	far := sim.NewStarship(2)
	far.SetFleet("B")
	attacker.Attack(far)
	if far.CurrentHealth() != ShipMaxHealth {
		t.Error("target in another sector should not take damage")
	}

	// two fleetless ships are friendly
	loner1 := sim.NewStarship(1)
	loner2 := sim.NewStarship(1)
	loner1.Attack(loner2)
	if loner2.CurrentHealth() != ShipMaxHealth {
		t.Error("fleetless ships should not damage each other")
	}
}

func TestStarshipCannotAttackWhileDocked(t *testing.T) {
	sim := NewSim()
	attackers := sim.NewFleet("Attacker", 1, 1)
	defenders := sim.NewFleet("Defender", 1, 1)

	attacker := attackers.Ships()[0]
	target := defenders.Ships()[0]

	attacker.DockWithStarbase(attackers.Starbases()[0])
	attacker.Attack(target)
	if target.CurrentHealth() != ShipMaxHealth {
		t.Errorf("docked ship should not attack, target health %d", target.CurrentHealth())
	}
}

func TestStarshipMoveSector(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)

	ship.MoveSector(-4)
	if ship.Sector() != -4 {
		t.Errorf("expected sector -4, got %d", ship.Sector())
	}
	ship.MoveSector(-4)
	if ship.Sector() != -4 {
		t.Errorf("moving to the same sector should be allowed, got %d", ship.Sector())
	}
}

func TestStarshipCannotMoveWhileDocked(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)
	base := sim.NewStarbase(1)

	ship.DockWithStarbase(base)
	ship.MoveSector(2)
	if ship.Sector() != 1 {
		t.Errorf("docked ship should not move, got sector %d", ship.Sector())
	}
}

func TestStarshipDocking(t *testing.T) {
	sim := NewSim()
	base := sim.NewStarbase(1)
	ship := sim.NewStarship(1)

	ship.DockWithStarbase(base)
	if !ship.IsDocked() {
		t.Fatal("expected ship to be docked")
	}
	if !base.HasDocked(ship) {
		t.Error("expected base roster to contain ship")
	}
	if ship.DockedBase() != base {
		t.Error("expected back-reference to base")
	}

	ship.UnDockWithStarbase()
	if ship.IsDocked() || base.HasDocked(ship) || ship.DockedBase() != nil {
		t.Error("expected ship to be fully undocked")
	}
}

func TestStarshipDockingRejected(t *testing.T) {
	sim := NewSim()
	base := sim.NewStarbase(1)
	base.SetFleet("A")

	foreign := sim.NewStarship(1)
	foreign.SetFleet("B")
	foreign.DockWithStarbase(base)
	if foreign.IsDocked() || len(base.DockedShips()) != 0 {
		t.Error("ship from another fleet should not dock")
	}

	far := sim.NewStarship(2)
	far.SetFleet("A")
	far.DockWithStarbase(base)
	if far.IsDocked() || len(base.DockedShips()) != 0 {
		t.Error("ship in another sector should not dock")
	}

	ship := sim.NewStarship(1)
	ship.SetFleet("A")
	other := sim.NewStarbase(1)
	other.SetFleet("A")
	ship.DockWithStarbase(base)
	ship.DockWithStarbase(other)
	if ship.DockedBase() != base || len(other.DockedShips()) != 0 {
		t.Error("docked ship should not dock again")
	}
}

func TestDockRejectsOtherSim(t *testing.T) {
	simA, simB := NewSim(), NewSim()
	fleetA := simA.NewFleet("A", 1, 1)
	ship, baseA := fleetA.Ships()[0], fleetA.Starbases()[0]
	baseB := simB.NewFleet("A", 1, 0).Starbases()[0]

	ship.DockWithStarbase(baseB)
	if ship.IsDocked() || ship.DockedBase() != nil {
		t.Fatal("ship should not dock at a base from another sim")
	}
	if len(baseB.DockedShips()) != 0 || baseB.CurrentDefence() != BaseMaxDefence {
		t.Error("other sim's base should be untouched")
	}

	ship.UnDockWithStarbase()
	ship.DockWithStarbase(baseA)
	if ship.DockedBase() != baseA || len(baseA.DockedShips()) != 1 {
		t.Error("ship should still dock at its own base")
	}
}

func TestDestroyedShipCanDock(t *testing.T) {
	sim := NewSim()
	base := sim.NewStarbase(1)
	ship := sim.NewStarship(1)
	ship.TakeDamage(ShipMaxHealth)

	ship.DockWithStarbase(base)
	if !ship.IsDocked() {
		t.Error("destroyed ship should still dock")
	}
}

func TestUnDockWithoutBase(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)
	ship.docked = true

	ship.UnDockWithStarbase()
	if ship.IsDocked() {
		t.Error("undock should clear the flag even without a base")
	}
}

func TestRepairRestoresHealth(t *testing.T) {
	ship, _ := damagedShip(t, 50)
	ship.currentCrew = 3

	ship.Repair()
	if ship.CurrentHealth() != ShipMaxHealth {
		t.Errorf("expected health %d, got %d", ShipMaxHealth, ship.CurrentHealth())
	}
	if ship.CurrentCrew() != ShipMaxCrew {
		t.Errorf("expected crew %d, got %d", ShipMaxCrew, ship.CurrentCrew())
	}
}

func TestRepairRequiresDocking(t *testing.T) {
	sim := NewSim()
	ship := sim.NewStarship(1)
	ship.TakeDamage(50)

	ship.Repair()
	if ship.CurrentHealth() != 50 || ship.RepairTurns() != 0 {
		t.Error("undocked ship should not repair")
	}
}

func TestRepairTurnBrackets(t *testing.T) {
	for _, tc := range []struct {
		health int
		turns  int
	}{
		{0, 4}, {10, 4}, {24, 4},
		{25, 3}, {49, 3},
		{50, 2}, {74, 2},
		{75, 1}, {99, 1},
		{100, 1},
	} {
		ship, _ := damagedShip(t, tc.health)
		ship.Repair()
		if ship.RepairTurns() != tc.turns {
			t.Errorf("health %d: expected %d repair turns, got %d", tc.health, tc.turns, ship.RepairTurns())
		}
	}
}

func TestRepairCausesSkippedTurns(t *testing.T) {
	ship, base := damagedShip(t, 85)
	ship.Repair()

	ship.UnDockWithStarbase()
	if !ship.IsDocked() || !base.HasDocked(ship) {
		t.Error("undock should be blocked while under repair")
	}

	ship.UnDockWithStarbase()
	if ship.IsDocked() || base.HasDocked(ship) {
		t.Error("undock should succeed once repair turns are spent")
	}
}

func TestRepairTimerSharedAcrossActions(t *testing.T) {
	ship, base := damagedShip(t, 10)
	ship.Repair()
	if ship.RepairTurns() != 4 {
		t.Fatalf("expected 4 repair turns, got %d", ship.RepairTurns())
	}

	enemy := ship.sim.NewStarship(1)
	enemy.SetFleet("enemy")

	ship.MoveSector(3)
	ship.Attack(enemy)
	ship.DockWithStarbase(base)
	if ship.RepairTurns() != 1 {
		t.Errorf("each blocked action should consume a turn, %d left", ship.RepairTurns())
	}
	if enemy.CurrentHealth() != ShipMaxHealth || ship.Sector() != 1 {
		t.Error("blocked actions should have no effect")
	}

	ship.UnDockWithStarbase()
	if !ship.IsDocked() || ship.RepairTurns() != 0 {
		t.Error("last turn should be consumed by the undock attempt")
	}

	ship.UnDockWithStarbase()
	if ship.IsDocked() {
		t.Error("ship should undock after the timer runs out")
	}
}

func TestStarshipIdentity(t *testing.T) {
	sim := NewSim()
	seen := make(map[ShipID]bool)
	for i := 0; i < 50; i++ {
		ship := sim.NewStarship(1)
		if seen[ship.ID()] {
			t.Fatalf("duplicate ship id %d", ship.ID())
		}
		seen[ship.ID()] = true
		if sim.Ship(ship.ID()) != ship {
			t.Fatalf("sim lookup mismatch for id %d", ship.ID())
		}
	}
}

func TestCeilDiv(t *testing.T) {
	for _, tc := range []struct{ a, b, want int }{
		{0, 100, 0}, {1, 100, 1}, {100, 100, 1}, {101, 100, 2}, {-50, 100, 0}, {-150, 100, -1},
	} {
		if got := ceilDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("ceilDiv(%d, %d): expected %d, got %d", tc.a, tc.b, tc.want, got)
		}
	}
}
