// Package logging configures structured slog output for fttf.
//
// Logs are JSON lines. With --debug they also go to a size-rotated file
// under ~/.fttf/logs/ so the background queue can be inspected after the
// fact. The MCP serve mode writes to the file only, since stdout carries
// the protocol stream.
package logging
