// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Storage settings:
//
//	CORPUS_POSTGRES_URL="postgres://localhost/corpus"
//	CORPUS_POSTGRES_MAX_CONNS="20"
//	CORPUS_POSTGRES_MIN_CONNS="2"
//	CORPUS_POSTGRES_TIMEOUT="5s"
//
// Cache settings:
//
//	CORPUS_CONFIG_CACHE_SIZE="1024"
//
// Observability settings:
//
//	CORPUS_LOG_LEVEL="info"
//	CORPUS_METRICS_ENABLED="true"
package config
