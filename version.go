// Package verdict holds module-wide metadata for the verdict validation harness.
package verdict

// Version is the release version reported by the CLI and the MCP server.
const Version = "v0.3.0"
