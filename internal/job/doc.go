// Package job implements the asynchronous processing core: an in-memory job
// store, a priority queue with atomic claim semantics, and per-type worker
// pools that execute handlers with bounded timeouts and retry with backoff.
//
// The Queue is the single owner of job lifecycle mutation. Workers claim jobs
// through it, report progress through it, and record outcomes through it;
// no other component writes job state. Cancellation is cooperative: only
// pending and retry jobs can be cancelled, a processing job always runs to
// completion or timeout.
package job
