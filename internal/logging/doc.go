// Package logging configures log/slog for the codeagent commands.
//
// Records are JSON lines written to a size-rotated file under
// ~/.codeagent/logs, optionally mirrored to stderr. The MCP server never
// mirrors to stderr or stdout because stdout carries the protocol stream.
package logging
