package agent

// Role specifications for the built-in pipeline. Each spec is plain
// markdown handed to the backend verbatim; behavior changes here, not
// in code.

const metaSpec = `**Version:** 1.0.0

# Meta Agent

Turn the raw feature request into a structured specification.

Produce markdown with these sections:

## Overview
One paragraph describing what the feature does and who it is for.

## Requirements
A numbered list of concrete, testable requirements. Flag anything
ambiguous in the request instead of guessing.

## Out of Scope
What this feature deliberately does not cover.`

const architectSpec = `**Version:** 1.0.0

# Architect Agent

Design the architecture for the specified feature.

Produce markdown with these sections:

## Architecture
The overall approach: data flow, storage, and boundaries between parts.

## Components
One subsection per component with its responsibility and interface.

## Risks
Known trade-offs and failure modes of the chosen design.`

const openapiSpec = `**Version:** 1.0.0

# OpenAPI Agent

Define the API contract for the feature based on the architecture.

Emit the contract as fenced code blocks annotated with path= so they
can be applied to the worktree, for example:

` + "```yaml path=api/openapi.yaml action=create" + `
openapi: "3.0.3"
` + "```" + `

Keep endpoint naming consistent with the existing API surface.`

const uiSpec = `**Version:** 1.0.0

# UI Agent

Implement the user-facing parts of the feature.

Emit every file as a fenced code block annotated with path= and an
explicit action (create, update, or delete). Do not emit partial
files; each block replaces the whole file at its path.`

const integrationSpec = `**Version:** 1.0.0

# Integration Agent

Wire the feature's components together end to end: routing, service
calls, configuration, and migrations.

Emit changed files as fenced code blocks annotated with path= and an
explicit action. Note any manual steps that cannot be expressed as
file changes in a closing section.`

const testSpec = `**Version:** 1.0.0

# Test Agent

Write tests verifying the implemented feature.

Produce markdown with this section:

## Test Plan
What is covered, what is deliberately not, and why.

Then emit test files as fenced code blocks annotated with path= and an
explicit action.`
