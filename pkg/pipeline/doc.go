// Package pipeline runs the catalog stages in order:
//
//	crawl -> classify -> correlate -> fetch -> assemble -> upload
//
// Every stage reads its input from the documents the previous stage
// persisted in the data directory, so any stage can be re-run on its own.
// A full run holds the data directory lock, checkpoints after each stage and
// reports a failing stage as an errors.StageError. Item failures inside a
// stage (a frame that would not download, a segment that could not be
// resolved) are collected in the Report instead of failing the stage.
package pipeline
