// Package testing provides test utilities for the process-monitor library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger that routes output through t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    pmtest "github.com/gitxandert/process-monitor/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := pmtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
