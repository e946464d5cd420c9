// Package gateway talks to the downstream message vendor. The core treats
// it as an opaque, possibly slow, possibly failing call: no idempotency is
// guaranteed and retries are the caller's decision.
package gateway

import "context"

// SendResult is the vendor's verdict on one send attempt.
type SendResult struct {
	Success         bool   `json:"success"`
	VendorMessageID string `json:"vendorMessageId,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Gateway sends one personalized message to one recipient. A returned error
// means the call itself failed (transport, timeout); a SendResult with
// Success=false means the vendor rejected the message.
type Gateway interface {
	Send(ctx context.Context, messageID, recipient, body string) (*SendResult, error)
}
