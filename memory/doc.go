// Package memory persists conversations.
//
// Persistence model:
//   - One JSON blob holds every conversation; it is read once at Open and
//     rewritten after each mutation.
//   - Messages are a closed tagged union (text, tool_use, tool_result)
//     convertible to and from wire messages at the store boundary.
//   - Retention is bounded: past the configured maximum the least
//     recently updated conversation is evicted.
package memory
