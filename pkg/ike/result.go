package ike

import (
	"time"

	"github.com/projectdiscovery/ikex/pkg/ikev2"
)

// FailureKind classifies why a probe produced no usable negotiation.
type FailureKind string

const (
	// FailureConnection covers dial and send failures, including
	// timeouts, before any response could arrive.
	FailureConnection FailureKind = "connection-error"
	// FailureNoResponse means the request went out but zero bytes
	// came back before the deadline. Expected for this protocol
	// family, which is UDP first and often silent over TCP.
	FailureNoResponse FailureKind = "no-response"
	// FailureMalformed means bytes arrived but were too short to
	// hold a header.
	FailureMalformed FailureKind = "malformed-response"
	// FailureReject means the peer answered with a decodable
	// rejection.
	FailureReject FailureKind = "protocol-reject"
)

// ProbeError is the structured failure attached to a result. It is
// data, not control flow: probes never panic and never return a bare
// error.
type ProbeError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	// Received carries the byte count for malformed responses.
	Received int `json:"received_bytes,omitempty"`
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return e.Message
}

// V1Result is the outcome of one ISAKMP phase 1 probe.
type V1Result struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Success         bool          `json:"success"`
	Version         string        `json:"version,omitempty"`
	ExchangeType    string        `json:"exchange_type,omitempty"`
	InitiatorCookie string        `json:"initiator_cookie,omitempty"`
	ResponderCookie string        `json:"responder_cookie,omitempty"`
	VendorIDs       []string      `json:"vendor_ids,omitempty"`
	ProposalCount   int           `json:"proposal_count,omitempty"`
	TransformCount  int           `json:"transform_count,omitempty"`
	Notify          string        `json:"notify,omitempty"`
	RTT             time.Duration `json:"rtt,omitempty"`
	Error           *ProbeError   `json:"error,omitempty"`
}

// V2Result is the outcome of one IKE_SA_INIT probe. The embedded
// NegotiatedSA carries the responder's selected algorithms when the
// exchange got that far.
type V2Result struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	ikev2.NegotiatedSA
	ResponderSPI   string        `json:"responder_spi,omitempty"`
	ErrorNotify    string        `json:"error_notify,omitempty"`
	Notifications  []string      `json:"notifications,omitempty"`
	VersionWarning string        `json:"version_warning,omitempty"`
	RTT            time.Duration `json:"rtt,omitempty"`
	Error          *ProbeError   `json:"error,omitempty"`
}
