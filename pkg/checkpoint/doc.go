// Package checkpoint records which pipeline stages a run has completed so an
// interrupted run can resume from the first unfinished stage.
//
// The checkpoint lives next to the data it describes, in
// <data>/.marsfeed.checkpoint.json, and is written atomically. It carries a
// run id, the completed stages in order, per-item failures collected along the
// way and the days whose frames are still incomplete. A run that finishes
// deletes its checkpoint.
package checkpoint
