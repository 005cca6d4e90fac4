// Package log records protocol events for lockline nodes.
//
// Operational logging goes through log/slog. This package is the separate,
// machine-readable trace of what crossed the link and how each node's state
// machine reacted to it, so that a panel trace and a controller trace can be
// lined up after the fact.
//
// # Basic Usage
//
//	// console, during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// binary trace file
//	fl, _ := log.NewFileLogger("/var/log/lockline/controller.llog")
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Layers
//
//   - TRANSPORT: one event per frame written or read (size and opcode only)
//   - WIRE: decoded frames
//   - NODE: state machine, session, actuation and lockout changes
//
// Credential digits are never recorded. Frame events carry the opcode byte
// only and mark the payload as redacted.
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events (.llog). The lockline-log
// command views, filters and summarises them.
package log
