// Package pipeline declares pipelines and orders them into an execution plan.
//
// A Pipeline holds four ordered module lists (read, process, render, write), the
// names of the pipelines it depends on, and two flags: isolated pipelines are left
// out of AsSerial wiring, and always-process pipelines ignore change detection.
//
// Pipelines are registered in a Collection, usually through a Builder that records
// discrete steps and applies them in one pass. BuildPlan validates the collection
// and produces a topological order; it is the only place cyclic or unresolvable
// dependencies are detected, and it runs before any pipeline executes.
package pipeline
