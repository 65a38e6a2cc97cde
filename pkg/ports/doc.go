/*
Package ports defines the driven ports (interfaces) for the transition engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with different workflow providers and pending
store backends.

# Key Interfaces

  - WorkflowProvider: the consumed contract of the workflow rules provider /
    system of record (query next state, apply transition).
  - PendingStore: persistence of pending transition records, keyed by
    correlation id.
  - IdentityResolver: resolves the acting user for identity field defaults.
  - DistributedLocker: distributed locking for multi-instance deployments.
*/
package ports
