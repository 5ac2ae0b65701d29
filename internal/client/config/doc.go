// Package config loads runtime configuration for identityctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c/-config or $IDENTITY_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the identity gRPC endpoint
//	-s string   path of the local session database
//	-t int      per request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_file": "/home/me/.identityctl.db",
//	  "request_timeout": "10s"
//	}
package config
