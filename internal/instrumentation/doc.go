// Package instrumentation records OpenTelemetry metrics for CalDAV round
// trips.
//
// # Metrics
//
//   - caldav_requests_total: Counter of requests by method and status
//   - caldav_request_duration_seconds: Histogram of request durations by method
//   - caldav_resource_errors_total: Counter of resources that could not be
//     turned into events, by reason
//   - caldav_events_decoded_total: Counter of events decoded from responses
//
// A zero Metrics value records nothing, so callers that do not configure a
// meter pay no cost.
package instrumentation
