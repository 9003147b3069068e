// Package chat implements the conversational session manager: a bounded,
// per-user in-memory cache of active sessions backed by a durable turn log.
//
// Components:
//
//   - [Cache]: at most MaxSessionsPerUser active sessions per user; the
//     least-recently-active session is evicted when a user exceeds capacity.
//   - [Manager]: the single entry point for the messaging endpoint. Resolve
//     returns (session id, chain, history); RecordTurn applies a completed
//     exchange to the cache and mirrors it into the store.
//   - [HistoryLoader]: rebuilds ordered, role-tagged history from the store
//     on cache miss, tolerating individually malformed records.
//   - [Writer]: bounded write-behind worker pool. Jobs are best effort —
//     failures are logged and dropped, never retried.
//   - [Factory]: builds Genkit-backed reply chains bound to a user's profile
//     and mood context. Chains are expensive to build and cached per session.
//
// # Concurrency
//
// The cache serializes mutations per user key; operations for different
// users never contend on a shared lock. Persistence jobs run detached on the
// writer's worker pool. Two jobs for the same session may complete out of
// issue order — the store is eventually consistent with the cache, and the
// cache is a disposable view: losing it loses no conversational data, only
// the cost of rebuilding.
package chat
