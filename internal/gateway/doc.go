// Package gateway wires the notification hub, call-log store, and HTTP
// surface into one server.
//
// Endpoints:
//
//   - GET /sse?agent=<id>&secret=<s>: register a push channel and stream
//     events (400 missing agent, 403 bad secret)
//   - GET /notify?customerID=<id>&phone=<n>&agent=<id>: dispatch trigger;
//     always 200 with an HTML confirmation page unless both routing fields
//     are empty
//   - GET /health: JSON liveness and deployment info
//   - GET /calls, /calls.csv: dispatch audit log
package gateway
