// Package runner drives the conversational loop: prepare a send window,
// call the model, execute requested tools, repeat until the model ends its
// turn or a bound is hit.
//
// State lives on the Turn passed into RunTurn, never on the Runner, so a
// conversation can be persisted, inspected, or resumed between calls.
//
// Invariants:
//   - tool_use and the corresponding tool_result are kept adjacent within a
//     turn: every tool round appends exactly one assistant message followed
//     by one user message carrying all results in request order.
//   - fatal errors leave turn.Messages with everything appended so far.
//
// Flow:
//
//	user(text) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
package runner
