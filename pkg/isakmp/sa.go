package isakmp

import (
	"encoding/binary"

	"github.com/projectdiscovery/ikex/pkg/wire"
)

// Phase 1 attribute classes (RFC 2409 appendix A).
const (
	AttrEncryptionAlgorithm  uint16 = 1
	AttrHashAlgorithm        uint16 = 2
	AttrAuthenticationMethod uint16 = 3
	AttrGroupDescription     uint16 = 4
	AttrLifeType             uint16 = 11
	AttrLifeDuration         uint16 = 12
)

// Attribute values offered by the probe.
const (
	EncrAESCBC       uint16 = 7
	HashSHA1         uint16 = 2
	AuthPreSharedKey uint16 = 1
	Group1024MODP    uint16 = 2
	LifeTypeSeconds  uint16 = 1
	LifeSeconds      uint16 = 28800
)

const (
	// DOIIPsec is the IPsec domain of interpretation.
	DOIIPsec uint32 = 1
	// SituationIdentityOnly is SIT_IDENTITY_ONLY.
	SituationIdentityOnly uint32 = 1
	// ProtocolISAKMP is the proposal protocol ID for phase 1.
	ProtocolISAKMP byte = 1
	// TransformKeyIKE is the only phase 1 transform ID.
	TransformKeyIKE byte = 1

	proposalHeaderLen  = 8
	transformHeaderLen = 8
)

// BuildSAProposal builds the phase 1 SA payload the probe offers: one
// proposal with one transform carrying the six attributes gateways
// most widely accept (AES-CBC, SHA1, pre-shared keys, DH group 2,
// 28800 second lifetime). Innermost structure first, so each wrapper
// records a final length. The payload's next-payload pointer is None.
func BuildSAProposal() []byte {
	var attrs []byte
	attrs = wire.AppendTV(attrs, AttrEncryptionAlgorithm, EncrAESCBC)
	attrs = wire.AppendTV(attrs, AttrHashAlgorithm, HashSHA1)
	attrs = wire.AppendTV(attrs, AttrAuthenticationMethod, AuthPreSharedKey)
	attrs = wire.AppendTV(attrs, AttrGroupDescription, Group1024MODP)
	attrs = wire.AppendTV(attrs, AttrLifeType, LifeTypeSeconds)
	attrs = wire.AppendTV(attrs, AttrLifeDuration, LifeSeconds)

	transform := make([]byte, transformHeaderLen, transformHeaderLen+len(attrs))
	transform[0] = PayloadNone // last transform in the set
	binary.BigEndian.PutUint16(transform[2:4], uint16(transformHeaderLen+len(attrs)))
	transform[4] = 1 // transform number
	transform[5] = TransformKeyIKE
	transform = append(transform, attrs...)

	proposal := make([]byte, proposalHeaderLen, proposalHeaderLen+len(transform))
	proposal[0] = PayloadNone // single proposal
	binary.BigEndian.PutUint16(proposal[2:4], uint16(proposalHeaderLen+len(transform)))
	proposal[4] = 1 // proposal number
	proposal[5] = ProtocolISAKMP
	proposal[6] = 0 // SPI size
	proposal[7] = 1 // transform count
	proposal = append(proposal, transform...)

	body := make([]byte, 8, 8+len(proposal))
	binary.BigEndian.PutUint32(body[0:4], DOIIPsec)
	binary.BigEndian.PutUint32(body[4:8], SituationIdentityOnly)
	body = append(body, proposal...)

	sa := wire.AppendPayloadHeader(make([]byte, 0, wire.PayloadHeaderLen+len(body)), PayloadNone, 0, wire.PayloadHeaderLen+len(body))
	return append(sa, body...)
}

// Transform is one decoded phase 1 transform sub-structure.
type Transform struct {
	Number     byte
	ID         byte
	Attributes []wire.Attribute
}

// Proposal is one decoded phase 1 proposal sub-structure.
type Proposal struct {
	Number     byte
	ProtocolID byte
	SPI        []byte
	Transforms []Transform
}

// ParseSA decodes the proposal and transform sub-structures of an SA
// payload body (DOI and situation included, generic sub-header not).
// The walk tolerates truncation the same way ParseMessage does: a
// malformed length ends it with the structures decoded so far.
func ParseSA(body []byte) []Proposal {
	if len(body) < 8 {
		return nil
	}

	var proposals []Proposal
	offset := 8 // DOI + situation
	for offset+proposalHeaderLen <= len(body) {
		length16, _ := wire.Uint16(body, offset+2)
		length := int(length16)
		if length < proposalHeaderLen || offset+length > len(body) {
			break
		}
		next := body[offset]
		prop := Proposal{
			Number:     body[offset+4],
			ProtocolID: body[offset+5],
		}
		spiSize := int(body[offset+6])
		transformCount := int(body[offset+7])
		inner := body[offset+proposalHeaderLen : offset+length]
		if spiSize > len(inner) {
			break
		}
		prop.SPI = inner[:spiSize]
		prop.Transforms = parseTransforms(inner[spiSize:], transformCount)
		proposals = append(proposals, prop)
		offset += length
		if next == PayloadNone {
			break
		}
	}
	return proposals
}

func parseTransforms(buf []byte, count int) []Transform {
	var transforms []Transform
	offset := 0
	for i := 0; i < count && offset+transformHeaderLen <= len(buf); i++ {
		length16, _ := wire.Uint16(buf, offset+2)
		length := int(length16)
		if length < transformHeaderLen || offset+length > len(buf) {
			break
		}
		tr := Transform{Number: buf[offset+4], ID: buf[offset+5]}
		attrs := buf[offset+transformHeaderLen : offset+length]
		for len(attrs) > 0 {
			attr, consumed, ok := wire.ParseAttribute(attrs)
			if !ok {
				break
			}
			tr.Attributes = append(tr.Attributes, attr)
			attrs = attrs[consumed:]
		}
		transforms = append(transforms, tr)
		offset += length
	}
	return transforms
}
