// Package crypto implements the byte-permutation obfuscation applied to
// every frame of the SOS wire protocol.
//
// The permutation is a fixed 256-entry bijection distributed with the
// server. It is obfuscation, not cryptography: there is no key material
// and no negotiation. Encode and Decode are plain table lookups into two
// arrays that are inverses of each other.
package crypto

// encodeTable is the fixed substitution applied to outgoing payload bytes.
// Both ends of a connection carry the same table.
var encodeTable = [256]byte{
	0x0D, 0x00, 0xDF, 0x7F, 0x56, 0xF8, 0x3D, 0xB4,
	0x2A, 0xD3, 0xEE, 0x8E, 0x91, 0xC2, 0xF0, 0x66,
	0x6A, 0xE2, 0xBE, 0xD1, 0x1D, 0x5B, 0x98, 0xD7,
	0x1E, 0x07, 0x6B, 0xF5, 0xD4, 0xF7, 0x22, 0x8A,
	0x3C, 0xFF, 0x1F, 0x2D, 0x8B, 0xC6, 0xF3, 0x61,
	0xBF, 0x28, 0xA9, 0x6F, 0xCB, 0x71, 0xAD, 0x01,
	0x67, 0x4B, 0xFA, 0xED, 0xB2, 0xCD, 0x76, 0xE7,
	0xD8, 0x9B, 0x9C, 0x68, 0xCC, 0x38, 0x52, 0x87,
	0x29, 0x17, 0x0E, 0xBD, 0x43, 0xBA, 0x0F, 0x3B,
	0x08, 0xE4, 0x8C, 0x3E, 0xBC, 0x72, 0x5A, 0x03,
	0xFB, 0x54, 0x59, 0x0B, 0xA8, 0xE0, 0x99, 0x8F,
	0xB5, 0xAF, 0xFD, 0x47, 0x92, 0x31, 0x44, 0xC8,
	0x7E, 0xA3, 0x4F, 0xDB, 0x13, 0x69, 0xAE, 0x7C,
	0xDC, 0xF6, 0xD0, 0x73, 0x75, 0x10, 0xFC, 0xE9,
	0xC5, 0x32, 0x7B, 0x90, 0x4D, 0xF4, 0x64, 0xA6,
	0x97, 0x4A, 0x70, 0x62, 0xEB, 0x06, 0x6E, 0xC9,
	0xDE, 0x74, 0xEC, 0x6D, 0x5F, 0x8D, 0x35, 0x57,
	0x7A, 0x1C, 0x15, 0x50, 0x4C, 0x78, 0x37, 0x95,
	0xC1, 0x80, 0xB8, 0x24, 0x5E, 0x25, 0xA4, 0x46,
	0x11, 0xCA, 0x12, 0x2F, 0xE8, 0xA2, 0x34, 0xE1,
	0x09, 0x1A, 0xF9, 0x5D, 0xA5, 0xE5, 0xFE, 0x26,
	0x81, 0x83, 0x23, 0x9A, 0x0C, 0xB3, 0xBB, 0xA0,
	0x02, 0x77, 0xE6, 0xEA, 0x85, 0x55, 0x18, 0xCE,
	0x30, 0x51, 0x42, 0x84, 0xC4, 0x04, 0x20, 0x82,
	0xA1, 0x39, 0x2B, 0x19, 0xB9, 0xD9, 0x65, 0x9E,
	0xC3, 0x1B, 0xCF, 0xEF, 0xD2, 0xB1, 0x6C, 0x58,
	0x88, 0x86, 0x3A, 0x89, 0xD6, 0x14, 0xD5, 0xAA,
	0x53, 0xAB, 0x2C, 0x79, 0x41, 0xF1, 0x2E, 0xB7,
	0x5C, 0xF2, 0x4E, 0xC0, 0xB6, 0xAC, 0xA7, 0x93,
	0x9D, 0x45, 0x63, 0x05, 0x9F, 0x49, 0xC7, 0x36,
	0x3F, 0x33, 0x16, 0xE3, 0x21, 0x96, 0x0A, 0x60,
	0x7D, 0xDD, 0xDA, 0x48, 0x94, 0x40, 0x27, 0xB0,
}

// decodeTable is the inverse of encodeTable, derived once at init.
var decodeTable [256]byte

func init() {
	for i, v := range encodeTable {
		decodeTable[v] = byte(i)
	}
}

// Encode obfuscates data in-place through the permutation table.
func Encode(data []byte) {
	for i, b := range data {
		data[i] = encodeTable[b]
	}
}

// Decode reverses Encode in-place.
func Decode(data []byte) {
	for i, b := range data {
		data[i] = decodeTable[b]
	}
}

// Encoded returns an obfuscated copy of src, leaving src untouched.
func Encoded(src []byte) []byte {
	dst := make([]byte, len(src))
	for i, b := range src {
		dst[i] = encodeTable[b]
	}
	return dst
}

// Decoded returns a deobfuscated copy of src, leaving src untouched.
func Decoded(src []byte) []byte {
	dst := make([]byte, len(src))
	for i, b := range src {
		dst[i] = decodeTable[b]
	}
	return dst
}
