// Package logger provides the structured logging interface used across marsfeed.
//
// It wraps zerolog behind a small Logger interface so that pipeline stages can
// attach fields (stage, day, filename) without depending on zerolog directly.
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
