// Package telemetry adapts the infrastructure clients to auth.EventRecorder
// so every auth outcome reaches Prometheus, InfluxDB and the MQTT event feed.
//
// The infrastructure packages stay unaware of auth; each adapter here maps
// an auth.Event onto the client's own vocabulary. None of them block the
// request path and none forward the password, token or OTP.
package telemetry
