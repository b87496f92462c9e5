package isakmp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSAProposalStructure(t *testing.T) {
	sa := BuildSAProposal()

	// outer sub-header: next payload None, 2 byte length
	require.Greater(t, len(sa), 4)
	assert.Equal(t, PayloadNone, sa[0])
	assert.Equal(t, len(sa), int(binary.BigEndian.Uint16(sa[2:4])))

	// DOI and situation follow the sub-header
	assert.Equal(t, DOIIPsec, binary.BigEndian.Uint32(sa[4:8]))
	assert.Equal(t, SituationIdentityOnly, binary.BigEndian.Uint32(sa[8:12]))
}

// Building a proposal and parsing it back through the full message
// parser has to produce one proposal holding one transform with the
// six attributes in the order written.
func TestBuildSAProposalRoundTrip(t *testing.T) {
	sa := BuildSAProposal()
	h := testHeader(PayloadSecurityAssociation, len(sa))

	msg, err := ParseMessage(append(h.Marshal(), sa...))
	require.NoError(t, err)
	require.Len(t, msg.Payloads, 1)
	require.Equal(t, PayloadSecurityAssociation, msg.Payloads[0].Type)

	proposals := ParseSA(msg.Payloads[0].Body)
	require.Len(t, proposals, 1)

	prop := proposals[0]
	assert.Equal(t, byte(1), prop.Number)
	assert.Equal(t, ProtocolISAKMP, prop.ProtocolID)
	assert.Empty(t, prop.SPI)
	require.Len(t, prop.Transforms, 1)

	tr := prop.Transforms[0]
	assert.Equal(t, byte(1), tr.Number)
	assert.Equal(t, TransformKeyIKE, tr.ID)
	require.Len(t, tr.Attributes, 6)

	expected := []struct {
		attrType uint16
		value    uint16
	}{
		{AttrEncryptionAlgorithm, EncrAESCBC},
		{AttrHashAlgorithm, HashSHA1},
		{AttrAuthenticationMethod, AuthPreSharedKey},
		{AttrGroupDescription, Group1024MODP},
		{AttrLifeType, LifeTypeSeconds},
		{AttrLifeDuration, LifeSeconds},
	}
	for i, want := range expected {
		assert.True(t, tr.Attributes[i].TV, "attribute %d", i)
		assert.Equal(t, want.attrType, tr.Attributes[i].Type, "attribute %d", i)
		assert.Equal(t, want.value, tr.Attributes[i].Value, "attribute %d", i)
	}
}

func TestParseSADefensive(t *testing.T) {
	sa := BuildSAProposal()
	body := sa[4:] // strip the generic sub-header

	t.Run("too short for DOI and situation", func(t *testing.T) {
		assert.Nil(t, ParseSA(body[:7]))
	})

	t.Run("truncated proposal", func(t *testing.T) {
		for size := 8; size < len(body); size++ {
			assert.NotPanics(t, func() {
				proposals := ParseSA(body[:size])
				assert.Empty(t, proposals, "size %d", size)
			})
		}
	})

	t.Run("proposal length lies past buffer", func(t *testing.T) {
		corrupted := append([]byte(nil), body...)
		binary.BigEndian.PutUint16(corrupted[10:12], 0xff00)
		assert.Empty(t, ParseSA(corrupted))
	})

	t.Run("spi size exceeds proposal", func(t *testing.T) {
		corrupted := append([]byte(nil), body...)
		corrupted[14] = 0xff // SPI size field
		assert.Empty(t, ParseSA(corrupted))
	})
}

func TestParseSAWithSPI(t *testing.T) {
	// proposal with a 4 byte SPI and one empty transform
	transform := make([]byte, 8)
	transform[0] = PayloadNone
	binary.BigEndian.PutUint16(transform[2:4], 8)
	transform[4] = 1
	transform[5] = TransformKeyIKE

	spi := []byte{0xca, 0xfe, 0xba, 0xbe}
	proposal := make([]byte, 8)
	proposal[0] = PayloadNone
	binary.BigEndian.PutUint16(proposal[2:4], uint16(8+len(spi)+len(transform)))
	proposal[4] = 1
	proposal[5] = ProtocolISAKMP
	proposal[6] = byte(len(spi))
	proposal[7] = 1
	proposal = append(proposal, spi...)
	proposal = append(proposal, transform...)

	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], DOIIPsec)
	binary.BigEndian.PutUint32(body[4:8], SituationIdentityOnly)
	body = append(body, proposal...)

	proposals := ParseSA(body)
	require.Len(t, proposals, 1)
	assert.Equal(t, spi, proposals[0].SPI)
	require.Len(t, proposals[0].Transforms, 1)
	assert.Empty(t, proposals[0].Transforms[0].Attributes)
}

func TestParseSAMultipleProposals(t *testing.T) {
	buildProposal := func(next byte, number byte) []byte {
		transform := make([]byte, 8)
		binary.BigEndian.PutUint16(transform[2:4], 8)
		transform[4] = 1
		transform[5] = TransformKeyIKE

		proposal := make([]byte, 8)
		proposal[0] = next
		binary.BigEndian.PutUint16(proposal[2:4], uint16(8+len(transform)))
		proposal[4] = number
		proposal[5] = ProtocolISAKMP
		proposal[7] = 1
		return append(proposal, transform...)
	}

	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], DOIIPsec)
	binary.BigEndian.PutUint32(body[4:8], SituationIdentityOnly)
	body = append(body, buildProposal(PayloadProposal, 1)...)
	body = append(body, buildProposal(PayloadNone, 2)...)

	proposals := ParseSA(body)
	require.Len(t, proposals, 2)
	assert.Equal(t, byte(1), proposals[0].Number)
	assert.Equal(t, byte(2), proposals[1].Number)
}
