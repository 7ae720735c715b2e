// Package ui renders run output for the terminal: status lines, the per-stage
// summary table and desktop notifications.
package ui
