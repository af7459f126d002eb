// Package report reconciles per-item download outcomes into a run summary.
//
// The Reconciler accepts one Outcome per submitted task while in its
// Collecting state. Finalize freezes the summary; the counts always satisfy
// Total == Succeeded + Skipped + Failed, and the failure list preserves
// recording order so a later run can retry exactly that subset.
//
// The finalized summary serializes to a manifest.json in the output
// directory, written atomically so an interrupted run never leaves a torn
// manifest behind.
package report
