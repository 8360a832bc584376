// Package engine schedules the pipelines of a collection.
//
// Run validates the collection into a plan before anything executes, then
// launches every pipeline whose dependencies have completed. Independent
// pipelines run concurrently up to a parallelism limit; each pipeline runs its
// phases in order and publishes its Write-phase output for dependents.
//
// A failing pipeline marks every transitive dependent Failed without running it.
// Cancelling the run context stops new launches; pipelines that were interrupted
// or never started are reported Canceled, never Failed.
package engine
