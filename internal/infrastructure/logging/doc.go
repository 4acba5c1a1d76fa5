// Package logging provides structured logging for Gray Logic Appliances.
//
// It wraps log/slog so every component writes records with the same
// service and version attributes.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.With("component", "cloud.poller").Info("fetched devices", "count", n)
//
// Never log the cloud access token or MQTT password.
package logging
