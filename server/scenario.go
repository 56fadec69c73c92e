package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Step operations
const (
	OpMobilise    = "mobilise"    // fleet moves to Sector
	OpMove        = "move"        // one ship moves to Sector
	OpDock        = "dock"        // Ship docks at Target base
	OpUndock      = "undock"      // Ship leaves its base
	OpRepair      = "repair"      // Ship repairs while docked
	OpAttack      = "attack"      // Ship attacks Target
	OpFleetAttack = "fleetAttack" // fleet attacks Target once
	OpSiege       = "siege"       // fleet attacks Target until it is destroyed
	OpAddShip     = "addShip"     // new ship joins the fleet in Sector
	OpAddStarbase = "addStarbase" // new base joins the fleet in Sector
)

// maxSiegeRounds bounds a siege. The minimum damage rule ends any reachable
// siege of a full-health base in 100 rounds.
const maxSiegeRounds = 1000

var knownOps = map[string]bool{
	OpMobilise: true, OpMove: true, OpDock: true, OpUndock: true, OpRepair: true,
	OpAttack: true, OpFleetAttack: true, OpSiege: true, OpAddShip: true, OpAddStarbase: true,
}

// FleetSpec describes a fleet present at the start of a battle
type FleetSpec struct {
	Player string `json:"player"`
	Sector int    `json:"sector"`
	Ships  int    `json:"ships"`
}

// TargetRef points at a ship or a base of some fleet. Exactly one of Ship and Base is set.
type TargetRef struct {
	Fleet string `json:"fleet,omitempty"` // defaults to the step's fleet
	Ship  *int   `json:"ship,omitempty"`
	Base  *int   `json:"base,omitempty"`
}

// Step is one driver action
type Step struct {
	Op     string     `json:"op"`
	Fleet  string     `json:"fleet"`
	Ship   int        `json:"ship,omitempty"`
	Sector int        `json:"sector,omitempty"`
	Target *TargetRef `json:"target,omitempty"`
}

// Scenario is the script a battle replays
type Scenario struct {
	Name   string      `json:"name"`
	Fleets []FleetSpec `json:"fleets"`
	Steps  []Step      `json:"steps"`
}

// ParseScenario decodes and validates a JSON scenario
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// Validate checks what can be checked before the battle runs. Ship and
// base indices are resolved when a step executes, since fleets can grow.
func (sc *Scenario) Validate() error {
	if len(sc.Fleets) == 0 {
		return fmt.Errorf("scenario %q has no fleets", sc.Name)
	}
	players := make(map[string]bool, len(sc.Fleets))
	for i, f := range sc.Fleets {
		if f.Player == "" {
			return fmt.Errorf("fleet %d: empty player name", i)
		}
		if players[f.Player] {
			return fmt.Errorf("duplicate fleet %q", f.Player)
		}
		if f.Ships < 0 {
			return fmt.Errorf("fleet %q: negative ship count", f.Player)
		}
		players[f.Player] = true
	}

	for i, st := range sc.Steps {
		if !knownOps[st.Op] {
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if !players[st.Fleet] {
			return fmt.Errorf("step %d: unknown fleet %q", i, st.Fleet)
		}
		switch st.Op {
		case OpDock, OpAttack, OpFleetAttack, OpSiege:
			if st.Target == nil {
				return fmt.Errorf("step %d: %s needs a target", i, st.Op)
			}
			if (st.Target.Ship == nil) == (st.Target.Base == nil) {
				return fmt.Errorf("step %d: target must name exactly one of ship or base", i)
			}
			if st.Op == OpDock && st.Target.Base == nil {
				return fmt.Errorf("step %d: ships can only dock at a base", i)
			}
			if st.Target.Fleet != "" && !players[st.Target.Fleet] {
				return fmt.Errorf("step %d: unknown target fleet %q", i, st.Target.Fleet)
			}
		}
	}
	return nil
}

func shipRef(fleet string, i int) *TargetRef { return &TargetRef{Fleet: fleet, Ship: &i} }
func baseRef(fleet string, i int) *TargetRef { return &TargetRef{Fleet: fleet, Base: &i} }

// ReferenceScenario is the classic two-fleet demo: Player 1 moves in on
// Player 2, skirmishes with a lone ship and then besieges the starbase.
func ReferenceScenario() *Scenario {
	return &Scenario{
		Name: "reference",
		Fleets: []FleetSpec{
			{Player: "Player 1", Sector: 1, Ships: 3},
			{Player: "Player 2", Sector: 2, Ships: 3},
		},
		Steps: []Step{
			{Op: OpMobilise, Fleet: "Player 1", Sector: 2},
			{Op: OpDock, Fleet: "Player 2", Ship: 0, Target: baseRef("Player 2", 0)},
			{Op: OpDock, Fleet: "Player 2", Ship: 1, Target: baseRef("Player 2", 0)},
			{Op: OpAttack, Fleet: "Player 1", Ship: 0, Target: shipRef("Player 2", 2)},
			{Op: OpAttack, Fleet: "Player 1", Ship: 0, Target: shipRef("Player 2", 2)},
			{Op: OpDock, Fleet: "Player 2", Ship: 2, Target: baseRef("Player 2", 0)},
			{Op: OpRepair, Fleet: "Player 2", Ship: 2},
			{Op: OpSiege, Fleet: "Player 1", Target: baseRef("Player 2", 0)},
		},
	}
}
