package middleware

import (
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// NewOutboundHTTPClient returns an HTTP client instrumented with X-Ray and
// bounded by an explicit timeout. All outbound calls (phoenixd, LNURL
// endpoints) go through a client built here; an unbounded gateway call can
// stall the whole scheduler tick.
func NewOutboundHTTPClient(timeout time.Duration) *http.Client {
	return xray.Client(&http.Client{Timeout: timeout})
}
