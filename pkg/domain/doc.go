// Package domain holds the core types of the work item transition engine:
// work item snapshots, transition results, field prompts, pending transition
// records and the error taxonomy shared by the executor and its adapters.
//
// The package has no dependencies on the rest of the module so adapters and
// hosts can exchange these types freely.
package domain
