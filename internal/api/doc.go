// Package api implements the read-only status API of the gateway.
//
// Endpoints:
//   - GET /health and /api/v1/health: liveness and broker state
//   - GET /metrics: Prometheus exposition of the gateway counters
//   - GET /api/v1/stats: gateway counters
//   - GET /api/v1/devices and /api/v1/devices/{id}: routed devices
//   - GET /api/v1/metrics: Go runtime, pipeline, RF24Node process and
//     InfluxDB write statistics
//   - GET /api/v1/ws: WebSocket feed of readings and commands as they are
//     published, filtered by channel and optionally by device id
//
// Error responses share one JSON shape (Error) carrying the request id.
//
// The API never changes gateway state. Commands go through MQTT.
package api
