// Package ikev2 implements the IKEv2 side of the probe engine: the
// IKE_SA_INIT request builders and a defensive parser for the payload
// chains responders answer with, including selected-algorithm and
// notify extraction.
package ikev2

import (
	"encoding/binary"
	"fmt"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// HeaderLen is the fixed IKEv2 message header size.
const HeaderLen = 28

// Version20 is the version byte for IKE 2.0, major version in the
// high nibble.
const Version20 byte = 0x20

// Exchange types (RFC 7296 section 3.1).
const (
	ExchangeIKESAInit     byte = 34
	ExchangeIKEAuth       byte = 35
	ExchangeCreateChildSA byte = 36
	ExchangeInformational byte = 37
)

// Header flag bits.
const (
	FlagInitiator byte = 0x08
	FlagVersion   byte = 0x10
	FlagResponse  byte = 0x20
)

// Payload type codes (RFC 7296 section 3.2).
const (
	PayloadNone                byte = 0
	PayloadSecurityAssociation byte = 33
	PayloadKeyExchange         byte = 34
	PayloadIDInitiator         byte = 35
	PayloadIDResponder         byte = 36
	PayloadCertificate         byte = 37
	PayloadCertificateRequest  byte = 38
	PayloadAuthentication      byte = 39
	PayloadNonce               byte = 40
	PayloadNotify              byte = 41
	PayloadDelete              byte = 42
	PayloadVendorID            byte = 43
)

// flagCritical is the critical bit in a payload sub-header.
const flagCritical byte = 0x80

// Header is the fixed header prefixed to every IKEv2 message. The
// wire layout matches ISAKMP, only the cookie fields become SPIs.
type Header struct {
	InitiatorSPI [8]byte
	ResponderSPI [8]byte
	NextPayload  byte
	Version      byte
	ExchangeType byte
	Flags        byte
	MessageID    uint32
	Length       uint32
}

// Marshal packs the header into its 28 byte wire form.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:8], h.InitiatorSPI[:])
	copy(buf[8:16], h.ResponderSPI[:])
	buf[16] = h.NextPayload
	buf[17] = h.Version
	buf[18] = h.ExchangeType
	buf[19] = h.Flags
	binary.BigEndian.PutUint32(buf[20:24], h.MessageID)
	binary.BigEndian.PutUint32(buf[24:28], h.Length)
	return buf
}

// MajorVersion returns the high nibble of the version byte.
func (h *Header) MajorVersion() byte {
	return h.Version >> 4
}

// VersionString renders the version nibbles as "major.minor".
func (h *Header) VersionString() string {
	return fmt.Sprintf("%d.%d", h.Version>>4, h.Version&0x0f)
}

// Payload is one decoded payload record. Body excludes the 4 byte
// sub-header.
type Payload struct {
	Type     byte
	Critical bool
	Body     []byte
}

// Message is a decoded IKEv2 message: header plus the ordered payload
// chain that followed it.
type Message struct {
	Header   Header
	Payloads []Payload
}

// ParseResponse decodes a raw response. Buffers shorter than the
// header are rejected. The payload walk is bounded by the minimum of
// the header's declared total length and the actual buffer length,
// defending independently against truncated reads and forged length
// fields, and it tolerates truncation the same way the ISAKMP parser
// does: a malformed record ends the walk with the records decoded so
// far.
func ParseResponse(buf []byte) (*Message, error) {
	if len(buf) < HeaderLen {
		return nil, fmt.Errorf("invalid ikev2 message: got %d bytes, header needs %d", len(buf), HeaderLen)
	}

	msg := &Message{
		Header: Header{
			NextPayload:  buf[16],
			Version:      buf[17],
			ExchangeType: buf[18],
			Flags:        buf[19],
			MessageID:    binary.BigEndian.Uint32(buf[20:24]),
			Length:       binary.BigEndian.Uint32(buf[24:28]),
		},
	}
	copy(msg.Header.InitiatorSPI[:], buf[0:8])
	copy(msg.Header.ResponderSPI[:], buf[8:16])

	limit := len(buf)
	if declared := int64(msg.Header.Length); declared < int64(limit) {
		limit = int(declared)
	}

	offset := HeaderLen
	next := msg.Header.NextPayload
	for next != PayloadNone && offset+wire.PayloadHeaderLen <= limit {
		length16, _ := wire.Uint16(buf, offset+2)
		payloadLen := int(length16)
		if payloadLen < wire.PayloadHeaderLen || offset+payloadLen > limit {
			break
		}
		msg.Payloads = append(msg.Payloads, Payload{
			Type:     next,
			Critical: buf[offset+1]&flagCritical != 0,
			Body:     buf[offset+wire.PayloadHeaderLen : offset+payloadLen],
		})
		next = buf[offset]
		offset += payloadLen
	}

	return msg, nil
}
