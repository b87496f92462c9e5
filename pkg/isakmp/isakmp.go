// Package isakmp implements the IKEv1 side of the probe engine: the
// 28 byte ISAKMP header, the phase 1 SA proposal offered to peers, and
// a defensive parser for the payload chains peers answer with.
package isakmp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// HeaderLen is the fixed ISAKMP message header size.
const HeaderLen = 28

// Payload type codes (RFC 2408 section 3.1).
const (
	PayloadNone                byte = 0
	PayloadSecurityAssociation byte = 1
	PayloadProposal            byte = 2
	PayloadTransform           byte = 3
	PayloadKeyExchange         byte = 4
	PayloadIdentification      byte = 5
	PayloadCertificate         byte = 6
	PayloadCertificateRequest  byte = 7
	PayloadHash                byte = 8
	PayloadSignature           byte = 9
	PayloadNonce               byte = 10
	PayloadNotification        byte = 11
	PayloadDelete              byte = 12
	PayloadVendorID            byte = 13
)

// Exchange type codes. 1-5 come from RFC 2408, 32 is the phase 2
// quick mode exchange of RFC 2409.
const (
	ExchangeNone           byte = 0
	ExchangeBase           byte = 1
	ExchangeMainMode       byte = 2
	ExchangeAuthOnly       byte = 3
	ExchangeAggressiveMode byte = 4
	ExchangeInformational  byte = 5
	ExchangeQuickMode      byte = 32
)

// Header is the fixed header prefixed to every ISAKMP message.
type Header struct {
	InitiatorCookie [8]byte
	ResponderCookie [8]byte
	NextPayload     byte
	Version         byte
	ExchangeType    byte
	Flags           byte
	MessageID       uint32
	Length          uint32
}

// Version packs major and minor version nibbles into the wire byte.
func Version(major, minor byte) byte {
	return major<<4 | minor&0x0f
}

// Marshal packs the header into its 28 byte wire form.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderLen)
	copy(buf[0:8], h.InitiatorCookie[:])
	copy(buf[8:16], h.ResponderCookie[:])
	buf[16] = h.NextPayload
	buf[17] = h.Version
	buf[18] = h.ExchangeType
	buf[19] = h.Flags
	binary.BigEndian.PutUint32(buf[20:24], h.MessageID)
	binary.BigEndian.PutUint32(buf[24:28], h.Length)
	return buf
}

// VersionString renders the version nibbles as "major.minor".
func (h *Header) VersionString() string {
	return fmt.Sprintf("%d.%d", h.Version>>4, h.Version&0x0f)
}

// Payload is one decoded payload record. The type comes from the
// preceding record's next-payload pointer, Body excludes the 4 byte
// sub-header.
type Payload struct {
	Type byte
	Body []byte
}

// Message is a decoded ISAKMP message: header plus the ordered payload
// chain that followed it.
type Message struct {
	Header   Header
	Payloads []Payload
}

// ParseMessage decodes a raw response. Buffers shorter than the header
// are rejected. The payload walk is defensive: a record that declares
// a length shorter than its own sub-header or past the end of the
// buffer ends the walk, and the records decoded so far are kept. Since
// every accepted record is at least 4 bytes long the offset strictly
// increases, so the walk terminates on any input.
func ParseMessage(buf []byte) (*Message, error) {
	if len(buf) < HeaderLen {
		return nil, fmt.Errorf("invalid isakmp message: got %d bytes, header needs %d", len(buf), HeaderLen)
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
	copy(msg.Header.InitiatorCookie[:], buf[0:8])
	copy(msg.Header.ResponderCookie[:], buf[8:16])

	offset := HeaderLen
	next := msg.Header.NextPayload
	for next != PayloadNone && offset+wire.PayloadHeaderLen <= len(buf) {
		length, _ := wire.Uint16(buf, offset+2)
		payloadLen := int(length)
		if payloadLen < wire.PayloadHeaderLen || offset+payloadLen > len(buf) {
			break
		}
		msg.Payloads = append(msg.Payloads, Payload{
			Type: next,
			Body: buf[offset+wire.PayloadHeaderLen : offset+payloadLen],
		})
		next = buf[offset]
		offset += payloadLen
	}

	return msg, nil
}

// VendorIDs hex encodes the body of every vendor ID payload in the
// chain. Gateways use these as implementation fingerprints.
func VendorIDs(payloads []Payload) []string {
	var ids []string
	for _, p := range payloads {
		if p.Type == PayloadVendorID && len(p.Body) > 0 {
			ids = append(ids, hex.EncodeToString(p.Body))
		}
	}
	return ids
}
