package ikev2

import (
	"encoding/binary"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// Transform types (RFC 7296 section 3.3.2).
const (
	TransformEncryption byte = 1
	TransformPRF        byte = 2
	TransformIntegrity  byte = 3
	TransformDHGroup    byte = 4
	TransformESN        byte = 5
)

// Transform IDs offered by the probe.
const (
	EncrAESCBC      uint16 = 12
	PRFHMACSHA256   uint16 = 5
	IntegHMACSHA256 uint16 = 8
	Group2048MODP   uint16 = 14
)

const (
	// AttrKeyLength is the KEY_LENGTH transform attribute type.
	AttrKeyLength uint16 = 14
	// ProtocolIKE is the proposal protocol ID for the IKE SA itself.
	ProtocolIKE byte = 1

	// NonceLen is the nonce size the probe sends.
	NonceLen = 32

	proposalHeaderLen  = 8
	transformHeaderLen = 8

	// transformMore in a transform's first byte announces another
	// transform follows, 0 closes the set. Not a boolean.
	transformMore byte = 3
	// proposalMore is the same indicator for proposal sub-structures.
	proposalMore byte = 2

	// group14PublicLen is the public value size for a 2048 bit MODP
	// group.
	group14PublicLen = 256
)

// BuildTransform builds one transform sub-structure: 8 byte sub-header
// followed by any attribute bytes. last controls the first byte, 0 for
// the final transform of the set, 3 otherwise.
func BuildTransform(last bool, transformType byte, id uint16, attrs []byte) []byte {
	buf := make([]byte, transformHeaderLen, transformHeaderLen+len(attrs))
	if !last {
		buf[0] = transformMore
	}
	binary.BigEndian.PutUint16(buf[2:4], uint16(transformHeaderLen+len(attrs)))
	buf[4] = transformType
	binary.BigEndian.PutUint16(buf[6:8], id)
	return append(buf, attrs...)
}

// BuildSAPayload builds the SA payload the probe offers: a single
// proposal carrying the four transform types an IKE_SA_INIT needs, in
// fixed order, with a 256 bit key length attribute on the cipher.
func BuildSAPayload(next byte) []byte {
	var transforms []byte
	transforms = append(transforms, BuildTransform(false, TransformEncryption, EncrAESCBC, wire.AppendTV(nil, AttrKeyLength, 256))...)
	transforms = append(transforms, BuildTransform(false, TransformPRF, PRFHMACSHA256, nil)...)
	transforms = append(transforms, BuildTransform(false, TransformIntegrity, IntegHMACSHA256, nil)...)
	transforms = append(transforms, BuildTransform(true, TransformDHGroup, Group2048MODP, nil)...)

	proposal := make([]byte, proposalHeaderLen, proposalHeaderLen+len(transforms))
	proposal[0] = 0 // single proposal
	binary.BigEndian.PutUint16(proposal[2:4], uint16(proposalHeaderLen+len(transforms)))
	proposal[4] = 1 // proposal number
	proposal[5] = ProtocolIKE
	proposal[6] = 0 // SPI size
	proposal[7] = 4 // transform count
	proposal = append(proposal, transforms...)

	sa := wire.AppendPayloadHeader(make([]byte, 0, wire.PayloadHeaderLen+len(proposal)), next, 0, wire.PayloadHeaderLen+len(proposal))
	return append(sa, proposal...)
}

// BuildKEPayload builds the key exchange payload for DH group 14 with
// a zero-filled placeholder public value. The probe only needs the
// responder's first reply, never a completed key agreement.
func BuildKEPayload(next byte) []byte {
	body := make([]byte, 4+group14PublicLen)
	binary.BigEndian.PutUint16(body[0:2], Group2048MODP)
	ke := wire.AppendPayloadHeader(make([]byte, 0, wire.PayloadHeaderLen+len(body)), next, 0, wire.PayloadHeaderLen+len(body))
	return append(ke, body...)
}

// BuildNoncePayload wraps the caller's random nonce.
func BuildNoncePayload(next byte, nonce []byte) []byte {
	p := wire.AppendPayloadHeader(make([]byte, 0, wire.PayloadHeaderLen+len(nonce)), next, 0, wire.PayloadHeaderLen+len(nonce))
	return append(p, nonce...)
}

// BuildIKESAInit assembles the complete IKE_SA_INIT request: header
// plus SA, KE and Nonce payloads chained through their next-payload
// pointers, with the responder SPI zero and the initiator flag set.
func BuildIKESAInit(initiatorSPI [8]byte, nonce []byte) []byte {
	sa := BuildSAPayload(PayloadKeyExchange)
	ke := BuildKEPayload(PayloadNonce)
	noncePayload := BuildNoncePayload(PayloadNone, nonce)

	h := Header{
		InitiatorSPI: initiatorSPI,
		NextPayload:  PayloadSecurityAssociation,
		Version:      Version20,
		ExchangeType: ExchangeIKESAInit,
		Flags:        FlagInitiator,
		MessageID:    0,
		Length:       uint32(HeaderLen + len(sa) + len(ke) + len(noncePayload)),
	}

	buf := make([]byte, 0, h.Length)
	buf = append(buf, h.Marshal()...)
	buf = append(buf, sa...)
	buf = append(buf, ke...)
	return append(buf, noncePayload...)
}

// NegotiatedSA is the algorithm set a responder echoed back in its
// chosen proposal.
type NegotiatedSA struct {
	DHGroup int    `json:"dh_group,omitempty"`
	Encr    string `json:"encr,omitempty"`
	PRF     string `json:"prf,omitempty"`
	Integ   string `json:"integ,omitempty"`
}

// ParseSAPayload extracts the selected algorithms from the first
// proposal of a responder SA payload body. Responders echo exactly one
// chosen proposal, anything after it is ignored. The walk is defensive
// like the message parsers.
func ParseSAPayload(body []byte) *NegotiatedSA {
	sa := &NegotiatedSA{}
	offset := 0
	for offset+proposalHeaderLen <= len(body) {
		length16, _ := wire.Uint16(body, offset+2)
		length := int(length16)
		if length < proposalHeaderLen || offset+length > len(body) {
			break
		}
		spiSize := int(body[offset+6])
		transformCount := int(body[offset+7])
		inner := body[offset+proposalHeaderLen : offset+length]
		if spiSize > len(inner) {
			break
		}
		parseSATransforms(inner[spiSize:], transformCount, sa)
		break
	}
	return sa
}

func parseSATransforms(buf []byte, count int, sa *NegotiatedSA) {
	offset := 0
	for i := 0; i < count && offset+transformHeaderLen <= len(buf); i++ {
		length16, _ := wire.Uint16(buf, offset+2)
		length := int(length16)
		if length < transformHeaderLen || offset+length > len(buf) {
			return
		}
		id := binary.BigEndian.Uint16(buf[offset+6 : offset+8])
		switch buf[offset+4] {
		case TransformEncryption:
			sa.Encr = EncrLabel(id)
		case TransformPRF:
			sa.PRF = PRFLabel(id)
		case TransformIntegrity:
			sa.Integ = IntegLabel(id)
		case TransformDHGroup:
			sa.DHGroup = int(id)
		}
		offset += length
	}
}
