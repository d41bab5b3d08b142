package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"lukechampine.com/blake3"
)

// HashType identifies a digest algorithm usable as a name hash or content
// hash. Each type carries an 8-byte ASCII on-disk fingerprint (written into
// block headers) and the number of Fingerprint bytes it actually produces.
type HashType uint8

const (
	// HashSHA256 is SHA-256, producing a full 32-byte Fingerprint.
	HashSHA256 HashType = iota
	// HashBLAKE3 is BLAKE3 with the default 32-byte output.
	HashBLAKE3
)

// fingerprintSize is the width of the on-disk ASCII tag identifying a
// HashType inside a block header.
const fingerprintSize = 8

// canonicalTags is the spelling written to disk for each HashType. It must
// have exactly one entry per HashType.
var canonicalTags = map[HashType][fingerprintSize]byte{
	HashSHA256: [fingerprintSize]byte{'S', 'h', 'a', '2', '_', '2', '5', '6'},
	HashBLAKE3: [fingerprintSize]byte{'B', 'l', 'a', 'k', 'e', '3', '_', '_'},
}

// aliasTags lists every historical spelling that decodes to a HashType,
// including the canonical one. Encoding always uses canonicalTags; decoding
// accepts any of these.
var aliasTags = map[[fingerprintSize]byte]HashType{
	{'S', 'h', 'a', '2', '_', '2', '5', '6'}: HashSHA256,
	{'S', 'h', 'a', '2', '5', '6', '_', '_'}: HashSHA256,
	{'S', 'h', 'a', '2', '-', '2', '5', '6'}: HashSHA256,
	{'B', 'l', 'a', 'k', 'e', '3', '_', '_'}: HashBLAKE3,
	{'B', 'L', 'A', 'K', 'E', '3', '_', '_'}: HashBLAKE3,
}

// Fingerprint returns the canonical 8-byte ASCII tag for h.
func (h HashType) Fingerprint() [fingerprintSize]byte {
	tag, ok := canonicalTags[h]
	if !ok {
		panic(fmt.Sprintf("fingerprint: unregistered HashType %d", h))
	}
	return tag
}

// BytesCount returns how many bytes of a Fingerprint this HashType actually
// populates. Both registered types produce the full 32 bytes today, but the
// field is kept distinct from Size so a future narrower digest (e.g. a
// truncated or 20-byte hash) can be registered without an ABI change.
func (h HashType) BytesCount() int {
	switch h {
	case HashSHA256, HashBLAKE3:
		return Size
	default:
		panic(fmt.Sprintf("fingerprint: unregistered HashType %d", h))
	}
}

// HashTypeFromFingerprint resolves an on-disk 8-byte tag to a HashType,
// accepting any historical alias. It reports ok=false for unknown tags.
func HashTypeFromFingerprint(tag [fingerprintSize]byte) (HashType, bool) {
	ht, ok := aliasTags[tag]
	return ht, ok
}

// NewHasher returns a fresh hash.Hash implementing h's algorithm.
func (h HashType) NewHasher() hash.Hash {
	switch h {
	case HashSHA256:
		return sha256.New()
	case HashBLAKE3:
		return blake3.New(Size, nil)
	default:
		panic(fmt.Sprintf("fingerprint: unregistered HashType %d", h))
	}
}

// String returns a short human-readable name for h.
func (h HashType) String() string {
	switch h {
	case HashSHA256:
		return "sha256"
	case HashBLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("HashType(%d)", h)
	}
}
