// Package runner executes nested test specifications with one spec instance
// per leaf test.
//
// The main components are:
//   - LeafScheduler: Owns the pending queue and replays the tree from the
//     roots of a fresh spec instance once per pending test
//   - TestExecutor: Runs a single body with timeout and panic handling and
//     reports exactly one result per execution
//   - discoveryContext / locatingContext: The two ways a running body's
//     declared children are handled, selected per replay by the location
//     algorithm
//   - ResultStore: Write-once mapping from test description to result
//   - Listener: Observes replay and test lifecycle events
//   - TestRunner: Runs every registered spec and aggregates a RunnerResult
//
// The tree is never known upfront. Containers only declare their children
// while their bodies run, so every replay rediscovers the path to its target.
package runner
