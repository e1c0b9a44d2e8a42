// Package config defines the configuration structure for netmond.
//
// Configuration is organized into logical sections (Server, Collector,
// Database, Auth) plus top-level logging settings, loaded from an optional
// YAML file and NETMOND_* environment variables via viper, with struct-tag
// defaults applied first.
//
// # Server Configuration
//
//	┌──────────┬─────────┬──────────────────────────────────────┐
//	│ Field    │ Default │ Description                          │
//	├──────────┼─────────┼──────────────────────────────────────┤
//	│ Mode     │ "dev"   │ Server mode: "prod" or "dev"         │
//	│ HTTPPort │ 8000    │ Admin/telemetry API listen port      │
//	└──────────┴─────────┴──────────────────────────────────────┘
//
// # Collector Configuration
//
//	┌──────────────────────┬─────────┬─────────────────────────────────────┐
//	│ Field                │ Default │ Description                         │
//	├──────────────────────┼─────────┼─────────────────────────────────────┤
//	│ NumCollectors        │ 10      │ Data collector worker count         │
//	│ DefaultInterval      │ 60      │ Default polling interval (seconds)  │
//	│ DefaultRetentionDays │ 30      │ Default collected-data retention    │
//	└──────────────────────┴─────────┴─────────────────────────────────────┘
//
// # Database Configuration
//
//	┌──────┬──────────────┬──────────────────────────────────────┐
//	│ Field│ Default      │ Description                          │
//	├──────┼──────────────┼──────────────────────────────────────┤
//	│ Path │ "netmond.db" │ SQLite database file path            │
//	└──────┴──────────────┴──────────────────────────────────────┘
//
// # Authentication Configuration
//
//	┌─────────────┬─────────┬──────────────────────────────────────┐
//	│ Field       │ Default │ Description                          │
//	├─────────────┼─────────┼──────────────────────────────────────┤
//	│ Enabled     │ false   │ Require JWT bearer tokens on the API │
//	│ JWTFilePath │ ""      │ Path to the shared signing key       │
//	└─────────────┴─────────┴──────────────────────────────────────┘
package config
