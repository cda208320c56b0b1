// Package agent defines the pipeline stages, the typed records driving
// each agent, and the worker loop that polls a mailbox and turns
// prompts into results.
package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/weftlabs/weft/internal/errors"
)

// Stages is the pipeline order. Agents run grouped by stage, ordered
// within a stage by OrderInStage.
var Stages = []string{
	"specification",
	"architecture",
	"implementation",
	"validation",
}

// ValidationRules describe checks applied to an agent's output before
// it is written as a result.
type ValidationRules struct {
	RequiredSections []string
}

// Definition is the typed record that fully determines one agent's
// behavior. Agents differ only by data, never by code branching.
type Definition struct {
	ID           string
	Name         string
	Stage        string
	OrderInStage int
	Description  string
	RoleSpec     string
	Validation   ValidationRules
}

// Definitions returns the built-in agent pipeline.
func Definitions() []Definition {
	return []Definition{
		{
			ID:           "00-meta",
			Name:         "Meta",
			Stage:        "specification",
			OrderInStage: 0,
			Description:  "turning a raw feature request into a structured specification",
			RoleSpec:     metaSpec,
			Validation:   ValidationRules{RequiredSections: []string{"## Overview", "## Requirements"}},
		},
		{
			ID:           "01-architect",
			Name:         "Architect",
			Stage:        "architecture",
			OrderInStage: 0,
			Description:  "designing the system architecture for a specified feature",
			RoleSpec:     architectSpec,
			Validation:   ValidationRules{RequiredSections: []string{"## Architecture", "## Components"}},
		},
		{
			ID:           "02-openapi",
			Name:         "OpenAPI",
			Stage:        "implementation",
			OrderInStage: 0,
			Description:  "defining the API contract for the feature",
			RoleSpec:     openapiSpec,
		},
		{
			ID:           "03-ui",
			Name:         "UI",
			Stage:        "implementation",
			OrderInStage: 1,
			Description:  "implementing the user-facing parts of the feature",
			RoleSpec:     uiSpec,
		},
		{
			ID:           "04-integration",
			Name:         "Integration",
			Stage:        "implementation",
			OrderInStage: 2,
			Description:  "wiring the feature's components together end to end",
			RoleSpec:     integrationSpec,
		},
		{
			ID:           "05-test",
			Name:         "Test",
			Stage:        "validation",
			OrderInStage: 0,
			Description:  "writing tests that verify the implemented feature",
			RoleSpec:     testSpec,
			Validation:   ValidationRules{RequiredSections: []string{"## Test Plan"}},
		},
	}
}

// Lookup returns the definition for an agent id.
func Lookup(agentID string) (Definition, error) {
	for _, def := range Definitions() {
		if def.ID == agentID {
			return def, nil
		}
	}
	return Definition{}, errors.NewNotFoundError("agent", agentID)
}

// ExecutionOrder returns all definitions sorted by stage sequence, then
// by order within each stage.
func ExecutionOrder() []Definition {
	stageRank := make(map[string]int, len(Stages))
	for i, s := range Stages {
		stageRank[s] = i
	}

	defs := Definitions()
	sort.SliceStable(defs, func(i, j int) bool {
		if stageRank[defs[i].Stage] != stageRank[defs[j].Stage] {
			return stageRank[defs[i].Stage] < stageRank[defs[j].Stage]
		}
		return defs[i].OrderInStage < defs[j].OrderInStage
	})
	return defs
}

// BuildPrompt composes the full prompt sent to the backend from the
// agent's role spec and the incoming request.
func (d Definition) BuildPrompt(input string) string {
	return fmt.Sprintf(`You are %s agent, responsible for %s.

Your role and behavior are defined by this specification:

%s

---

You have received this input:

%s

---

Please process this input according to your role specification above.
Generate output that follows the format and requirements specified in your role definition.`,
		d.Name, d.Description, d.RoleSpec, input)
}

// ValidateOutput checks the output against the agent's validation
// rules, naming every missing section.
func (d Definition) ValidateOutput(output string) error {
	var missing []string
	for _, section := range d.Validation.RequiredSections {
		if !strings.Contains(output, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return errors.NewValidationError(
			fmt.Sprintf("output missing required sections: %s", strings.Join(missing, ", ")))
	}
	return nil
}
