// Package config handles configuration loading for screenpop-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SCREENPOP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/screenpop/gateway.yaml
//  3. ~/.config/screenpop/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  shared_secret: "${SCREENPOP_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8443"     # Stream, trigger, and audit endpoints
//	  fqdn: "pop.example.com"       # Reported on /health for PBX wiring
//	  shutdown_timeout: "5s"
//
// TLS (required in production: EventSource on a secure page needs HTTPS):
//
//	tls:
//	  enabled: true
//	  cert_file: "/etc/certs/pop.crt"
//	  key_file: "/etc/certs/pop.key"
//
// Authentication:
//
//	auth:
//	  shared_secret: "${SCREENPOP_SECRET}"  # Gates channel registration
//
// Database:
//
//	database:
//	  path: "/var/lib/screenpop/calls.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - http_addr, shared_secret, and database path are present
//   - cert_file and key_file are present when TLS is enabled
//   - Duration format validity
package config
