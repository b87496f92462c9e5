// Package wire holds the big-endian primitives shared by the ISAKMP
// and IKEv2 codecs: bounds-checked readers over raw buffers and the
// attribute encodings of RFC 2408 / RFC 7296.
package wire

import "encoding/binary"

const (
	// PayloadHeaderLen is the generic 4 byte payload sub-header
	// (next payload, flags, length) shared by both protocol versions.
	PayloadHeaderLen = 4

	// attributeTV marks the fixed-length "TV" attribute form: the high
	// bit of the type field is set and the value rides in the slot a
	// TLV attribute would use for its length.
	attributeTV uint16 = 0x8000
)

// Attribute is a single decoded transform attribute, either fixed
// length (TV, Value set) or variable length (TLV, Data set).
type Attribute struct {
	Type  uint16
	Value uint16
	Data  []byte
	TV    bool
}

// AppendTV appends a fixed-length attribute: 0x8000|type, then the
// 2 byte value.
func AppendTV(b []byte, attrType, value uint16) []byte {
	b = binary.BigEndian.AppendUint16(b, attributeTV|attrType)
	return binary.BigEndian.AppendUint16(b, value)
}

// AppendTLV appends a variable-length attribute: type with the high
// bit clear, 2 byte data length, then the data.
func AppendTLV(b []byte, attrType uint16, data []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, attrType&^attributeTV)
	b = binary.BigEndian.AppendUint16(b, uint16(len(data)))
	return append(b, data...)
}

// ParseAttribute decodes the attribute at the start of buf and reports
// how many bytes it consumed. ok is false when buf cannot hold the
// attribute it announces.
func ParseAttribute(buf []byte) (attr Attribute, consumed int, ok bool) {
	if len(buf) < 4 {
		return Attribute{}, 0, false
	}
	typeField := binary.BigEndian.Uint16(buf[0:2])
	if typeField&attributeTV != 0 {
		attr = Attribute{
			Type:  typeField &^ attributeTV,
			Value: binary.BigEndian.Uint16(buf[2:4]),
			TV:    true,
		}
		return attr, 4, true
	}
	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if length > len(buf)-4 {
		return Attribute{}, 0, false
	}
	attr = Attribute{Type: typeField, Data: buf[4 : 4+length]}
	return attr, 4 + length, true
}

// AppendPayloadHeader appends the generic payload sub-header. length
// is the full payload length including the sub-header itself.
func AppendPayloadHeader(b []byte, nextPayload, flags byte, length int) []byte {
	b = append(b, nextPayload, flags)
	return binary.BigEndian.AppendUint16(b, uint16(length))
}

// Uint8 reads the byte at off. ok is false past the end of buf.
func Uint8(buf []byte, off int) (byte, bool) {
	if off < 0 || off >= len(buf) {
		return 0, false
	}
	return buf[off], true
}

// Uint16 reads a big-endian uint16 at off. ok is false when buf is too
// short.
func Uint16(buf []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint16(buf[off : off+2]), true
}

// Uint32 reads a big-endian uint32 at off. ok is false when buf is too
// short.
func Uint32(buf []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), true
}
