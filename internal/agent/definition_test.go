package agent

import (
	"strings"
	"testing"

	"github.com/weftlabs/weft/internal/errors"
)

func TestDefinitionsComplete(t *testing.T) {
	defs := Definitions()
	if len(defs) != 6 {
		t.Fatalf("len(Definitions) = %d, want 6", len(defs))
	}

	validStages := make(map[string]bool)
	for _, s := range Stages {
		validStages[s] = true
	}

	for _, def := range defs {
		if def.ID == "" || def.Name == "" || def.RoleSpec == "" {
			t.Errorf("agent %q has empty fields", def.ID)
		}
		if !validStages[def.Stage] {
			t.Errorf("agent %q has unknown stage %q", def.ID, def.Stage)
		}
	}
}

func TestLookup(t *testing.T) {
	def, err := Lookup("01-architect")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if def.Name != "Architect" {
		t.Errorf("Name = %q", def.Name)
	}

	if _, err := Lookup("99-ghost"); !errors.IsNotFound(err) {
		t.Errorf("unknown agent should be not-found, got %v", err)
	}
}

func TestExecutionOrder(t *testing.T) {
	order := ExecutionOrder()

	var ids []string
	for _, def := range order {
		ids = append(ids, def.ID)
	}

	want := []string{"00-meta", "01-architect", "02-openapi", "03-ui", "04-integration", "05-test"}
	if len(ids) != len(want) {
		t.Fatalf("order = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	def, err := Lookup("00-meta")
	if err != nil {
		t.Fatal(err)
	}

	prompt := def.BuildPrompt("Add login")
	if !strings.Contains(prompt, "Meta agent") {
		t.Error("prompt should name the agent")
	}
	if !strings.Contains(prompt, def.RoleSpec) {
		t.Error("prompt should embed the role spec")
	}
	if !strings.Contains(prompt, "Add login") {
		t.Error("prompt should embed the input")
	}
}

func TestValidateOutput(t *testing.T) {
	def, err := Lookup("00-meta")
	if err != nil {
		t.Fatal(err)
	}

	good := "## Overview\nStuff.\n\n## Requirements\n1. Do it."
	if err := def.ValidateOutput(good); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}

	err = def.ValidateOutput("## Overview\nonly this")
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "## Requirements") {
		t.Errorf("error should name the missing section: %v", err)
	}

	// Agents without rules accept anything.
	ui, err := Lookup("03-ui")
	if err != nil {
		t.Fatal(err)
	}
	if err := ui.ValidateOutput("whatever"); err != nil {
		t.Errorf("agent without rules should accept any output: %v", err)
	}
}
