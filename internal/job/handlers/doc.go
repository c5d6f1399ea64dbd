// Package handlers contains the per-type job handlers executed by the
// worker pools. Each handler is a thin adapter: it reads the job's typed
// payload, calls the AI/embedding boundary (internal/ai) or a store, and
// returns a JSON-serializable result.
//
// Handlers classify provider failures: errors the provider cannot recover
// from are wrapped with job.ErrPermanent so the worker fails the job
// immediately; everything else is left transient and retried within the
// job's attempt budget.
package handlers
