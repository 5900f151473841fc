// Package logging provides the structured logger used across shadowsync.
//
// Entries are JSON (or logfmt-style text for development) and always carry
// service and version. Subsystems derive their own logger with Component so
// every line says where it came from:
//
//	log := logging.New(cfg.Logging, version)
//	loop.SetLogger(log.Component("sync"))
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes named cert_pem, key_pem, root_ca_pem or password are replaced
// with [REDACTED] before they are written.
package logging
