/*
Package adoflow is a dynamic state-transition engine for Azure DevOps work
items. It discovers the next valid state for a work item from the workflow
rules of the system of record, determines which additional fields must be
collected before the transition is legal, and carries the resulting
begin/collect/finish interaction to completion.

# Concept

The engine never hard-codes workflow knowledge. Every begin call asks the
workflow provider "where can this item go from here"; when the answer needs
more input, the engine hands back typed field prompts plus a correlation id,
and the host finishes (or cancels) the attempt later. A short-lived preview
cache answers "what would happen" queries for icons and tooltips without
touching the pending state.

# Key Features

  - Begin/pending/completed lifecycle with first-writer-wins correlation
    semantics: concurrent finish and cancel calls for one attempt resolve
    deterministically.
  - Typed field prompts (number, string, picklist, identity, datetime) with
    deterministic defaults and submission-time coercion.
  - Read-through preview cache with passive expiry and explicit invalidation
    on every completed transition.
  - Hexagonal architecture: the workflow provider, pending store, and hosts
    (CLI, HTTP, MCP) are all adapters around the same core.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/MuiGoku123432/adoflow"
		"github.com/MuiGoku123432/adoflow/pkg/adapters/azuredevops"
	)

	func main() {
		provider := azuredevops.NewClient(azuredevops.Config{
			Organization: "my-org",
			Project:      "my-project",
			PAT:          "<personal access token>",
		})

		engine, err := adoflow.New(provider)
		if err != nil {
			log.Fatal(err)
		}

		result, err := engine.BeginTransition(context.Background(), 42)
		if err != nil {
			log.Fatal(err)
		}
		_ = result // completed, or pending with prompts to collect
	}
*/
package adoflow
