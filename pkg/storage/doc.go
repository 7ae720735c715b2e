// Package storage persists everything marsfeed writes to disk.
//
// Manager keeps downloaded frames in a <day>/<filename> tree where file
// existence doubles as the download record. Documents stores the JSON
// intermediates (reference list, classified index, enriched trajectories).
// All writes go through a temporary file and a rename. RunLock keeps two
// runs from working on the same data directory.
package storage
