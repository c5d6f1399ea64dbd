// Package domain contains the core entities of the processing pipeline:
// curated content items, background jobs with their lifecycle state machine,
// and the typed payload carried by each job kind.
//
// Domain objects validate themselves on construction and expose explicit
// transition rules; all persistence and scheduling concerns live elsewhere.
package domain
