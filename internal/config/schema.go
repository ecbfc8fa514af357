package config

// configSchema is the embedded JSON Schema for the startup config file,
// compiled and validated by Validate before decoding — the same
// embed-a-schema-string approach the teacher takes for its own config
// schema, minus the indirection through a dedicated schema package.
const configSchema = `
{
  "type": "object",
  "required": ["data_dir"],
  "properties": {
    "data_dir": {
      "description": "Root directory for wal/, offsets.db, and plans/.",
      "type": "string"
    },
    "addr": {
      "description": "Address the dashboard HTTP/WebSocket server listens on.",
      "type": "string"
    },
    "plan_file": {
      "description": "Path to the plan file loaded at startup.",
      "type": "string"
    },
    "drain_timeout_ms": {
      "description": "Shutdown drain budget, in milliseconds: one overall bound for stopping the dashboard and for draining all background tasks.",
      "type": "integer",
      "minimum": 0
    },
    "wal": {
      "type": "object",
      "properties": {
        "max_segment_bytes": {"type": "integer", "minimum": 0},
        "delay_ring_size": {"type": "integer", "minimum": 0}
      }
    },
    "engines": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["engine_id", "definition_id", "kind"],
        "properties": {
          "engine_id": {"type": "integer", "minimum": 0},
          "definition_id": {"type": "integer", "minimum": 0},
          "kind": {"type": "string", "enum": ["SQLite", "Postgres", "Neo4j", "Mongo"]},
          "config": {"type": "object"}
        }
      }
    },
    "maintenance": {
      "type": "object",
      "properties": {
        "retention_interval_minutes": {"type": "integer", "minimum": 0},
        "retain_segments": {"type": "integer", "minimum": 0},
        "archive_dir": {"type": "string"}
      }
    }
  }
}
`
