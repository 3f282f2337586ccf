/*
Package httpserver implements the operations HTTP server of the host-side
bridge.

# Endpoints

  - GET /metrics: Prometheus metrics of the bridge
  - GET /livez: always 200 while the process runs
  - GET /readyz: 200 when ready, 503 while drained
  - GET /drain: marks the server not ready
  - GET /undrain: marks the server ready again
  - /debug/*: pprof, only when enabled

Draining only changes what /readyz reports so that a load balancer stops
routing new connections here. The bridge itself keeps accepting and relaying
until the process shuts down.

Requests are logged through the flashbots httplogger middleware.
*/
package httpserver
