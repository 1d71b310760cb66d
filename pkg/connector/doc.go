// Package connector defines the adapter boundary between the
// execution core and external systems.
//
// A Connector exposes four capabilities: TestConnection probes
// reachability, DiscoverSchema introspects the endpoint's shape,
// OpenRead returns a batch iterator over source records, and OpenWrite
// returns a transactional sink (Write any number of batches, then
// Commit or Abort exactly once).
//
// Factories are looked up through a Registry keyed by system type, so
// the runner never depends on a concrete adapter. Memory is the
// in-process implementation used by tests and preview runs; it also
// supports deterministic fault injection for exercising the runner's
// retry and abort paths.
package connector
