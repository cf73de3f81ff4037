// Package logging provides structured logging for RF24MQTT.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the gateway.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "/var/log/rf24mqtt.log"
//	    max_size: 10     # megabytes
//	    max_backups: 3
//
// File output is rotated by lumberjack.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("sending message to broker", "topic", topic, "value", value)
//
// Never log the radio network key or the MQTT password.
package logging
