/*
Package log provides structured logging for OmenDB using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
per-component child loggers, configurable log levels, and a handful of
package-level helpers for the common case. Every log line carries a
timestamp and can be filtered by severity.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog.Logger instance                  │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("kv" | "wal" | "alex" |     │          │
	│  │                  "txn" | "hnsw" | "db")      │          │
	│  │  - WithTxnID(txnID)                          │          │
	│  │  - WithTable(name)                           │          │
	│  │  - WithIndex(table, column)                  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	import "github.com/omendb/omendb/pkg/log"

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	kvLogger := log.WithComponent("kv")
	kvLogger.Info().Int64("key", 42).Msg("point read")

	txnLogger := log.WithTxnID(txnID)
	txnLogger.Warn().Msg("serialization conflict, aborting")

Simple, package-level logging for one-off messages:

	log.Info("recovered from WAL")
	log.Errorf("checkpoint failed: %v", err)
*/
package log
