package errors

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
)

// DeliveryCategory groups delivery failures by the explanation shown to users.
type DeliveryCategory string

const (
	DeliveryCredentials DeliveryCategory = "credentials"
	DeliveryNetwork     DeliveryCategory = "network"
	DeliveryGeneric     DeliveryCategory = "generic"
)

var credentialMarkers = []string{
	"login failed for user",
	"authentication",
	"auth failed",
	"535",
	"421",
	"service not available",
	"unavailable",
}

var networkMarkers = []string{
	"timed out",
	"timeout",
	"deadline exceeded",
	"connection refused",
	"no route to host",
}

// ClassifyDelivery maps a delivery (or upstream) failure to a category by
// error type first, then by message content. For a ReportError only the cause
// is inspected, so file names in the message cannot match.
func ClassifyDelivery(err error) DeliveryCategory {
	if err == nil {
		return ""
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return DeliveryNetwork
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return DeliveryNetwork
	}

	msg := err.Error()
	var rErr *ReportError
	if stderrors.As(err, &rErr) && rErr.Cause != nil {
		msg = rErr.Cause.Error()
	}
	msg = strings.ToLower(msg)
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return DeliveryCredentials
		}
	}
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return DeliveryNetwork
		}
	}
	return DeliveryGeneric
}

// UserMessage returns the explanation shown for a failure category.
func UserMessage(c DeliveryCategory) string {
	switch c {
	case DeliveryCredentials:
		return "Remote service not available: no report could be delivered. " +
			"Please try again later as this may be due to routine maintenance. " +
			"Middle-of-the-night maintenance can take up to 60 minutes."
	case DeliveryNetwork:
		return "Network problem: no report could be delivered. " +
			"Please use the campus VPN when off campus."
	default:
		return "Error: no report could be generated. Please report this to the help desk."
	}
}
