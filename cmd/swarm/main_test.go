package main

import (
	"testing"

	"nlc9-swarm/internal/agent"
	"nlc9-swarm/internal/config"
)

func resetFlags() {
	presetName = ""
	fleetCounts = config.RoleCounts{}
}

func TestGenFleetCustomCounts(t *testing.T) {
	defer resetFlags()
	fleetCounts = config.RoleCounts{Leaders: 1, Scouts: 3}

	cfg, err := genFleet()
	if err != nil {
		t.Fatalf("genFleet: %v", err)
	}
	byRole := make(map[agent.Role]int)
	for _, a := range cfg.Agents {
		byRole[a.Role]++
	}
	if byRole[agent.RoleLeader] != 1 || byRole[agent.RoleScout] != 3 || len(cfg.Agents) != 4 {
		t.Fatalf("fleet composition = %v", byRole)
	}
}

func TestGenFleetRejectsPresetWithCounts(t *testing.T) {
	defer resetFlags()
	presetName = "scout-pack"
	fleetCounts = config.RoleCounts{Followers: 2}

	if _, err := genFleet(); err == nil {
		t.Fatal("expected preset/count conflict error")
	}
}

func TestGenFleetDefaultsToBalanced(t *testing.T) {
	defer resetFlags()

	cfg, err := genFleet()
	if err != nil {
		t.Fatalf("genFleet: %v", err)
	}
	if len(cfg.Agents) == 0 {
		t.Fatal("default fleet is empty")
	}
}
