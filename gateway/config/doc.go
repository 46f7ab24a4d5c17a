// Package config loads the gateway configuration from YAML.
//
// Values may reference the environment with ${VAR}. Anything left unset
// takes the defaults in defaults.go:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8090
//	  socket_path: /ws
//	  max_content_length: 65536
//	screenshot:
//	  enabled: true
//	  timeout: 30s
//	log:
//	  level: ${LOG_LEVEL}
//	ngrok:
//	  enabled: false
//	  authtoken: ${NGROK_AUTHTOKEN}
//	telemetry:
//	  enabled: false
//	  endpoint: localhost:4317
package config
