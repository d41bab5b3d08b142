// Package fingerprint provides the fixed-size, little-endian byte array
// used throughout sumtree to represent both name hashes and content hashes.
//
// A Fingerprint is interpreted as a little-endian multi-word integer for
// ordering and arithmetic purposes, but its raw byte layout is always
// emitted and parsed little-endian regardless of host architecture.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Size is the width of a Fingerprint in bytes. The container format and
// hash registry only support this single width; see HashType.
const Size = 32

// wordSize is the width, in bytes, of the words compared during ordering
// and used during arithmetic. Size must be a multiple of wordSize.
const wordSize = 8

const words = Size / wordSize

// Fingerprint is a fixed-length digest, stored little-endian. Two
// Fingerprints compare word-by-word from the most significant (last) word
// down to the least significant (first), matching the semantics of a
// little-endian multi-word unsigned integer.
type Fingerprint [Size]byte

// Zero returns the all-zero Fingerprint.
func Zero() Fingerprint {
	return Fingerprint{}
}

// FromBytes copies b into a new Fingerprint. It panics if len(b) != Size;
// callers that receive untrusted lengths should check first.
func FromBytes(b []byte) Fingerprint {
	if len(b) != Size {
		panic(fmt.Sprintf("fingerprint: expected %d bytes, got %d", Size, len(b)))
	}
	var f Fingerprint
	copy(f[:], b)
	return f
}

// Bytes returns the raw little-endian bytes of f.
func (f Fingerprint) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, f[:])
	return out
}

// ParseHex parses a hex string into a Fingerprint. The bigEndian flag
// selects whether the parsed byte pairs are written into the array
// starting from the end or from the start. With bigEndian true the first
// hex byte pair becomes the most-significant (last) byte, which makes
// ParseHex(f.Hex(), true) == f; with bigEndian false the first pair
// becomes the least-significant (first) byte.
func ParseHex(s string, bigEndian bool) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != Size*2 {
		return f, fmt.Errorf("fingerprint: hex string must be %d characters, got %d", Size*2, len(s))
	}
	for i := 0; i < Size; i++ {
		hi, err := hexDigit(s[i*2])
		if err != nil {
			return Fingerprint{}, err
		}
		lo, err := hexDigit(s[i*2+1])
		if err != nil {
			return Fingerprint{}, err
		}
		b := hi<<4 | lo
		if bigEndian {
			f[Size-i-1] = b
		} else {
			f[i] = b
		}
	}
	return f, nil
}

func hexDigit(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("fingerprint: invalid hex digit %q", b)
	}
}

// Hex renders f as a most-significant-byte-first hex string, independent of
// the array's internal little-endian byte order.
func (f Fingerprint) Hex() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, Size*2)
	for i := Size - 1; i >= 0; i-- {
		b := f[i]
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return string(out)
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	return f.Hex()
}

// Compare orders a relative to b, comparing 8-byte little-endian words from
// the most significant word down to the least significant, returning -1, 0
// or 1. This is the total order used to sort entries and chunks.
func (a Fingerprint) Compare(b Fingerprint) int {
	for i := words - 1; i >= 0; i-- {
		wa := binary.LittleEndian.Uint64(a[i*wordSize : (i+1)*wordSize])
		wb := binary.LittleEndian.Uint64(b[i*wordSize : (i+1)*wordSize])
		if wa != wb {
			if wa < wb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether a sorts before b.
func (a Fingerprint) Less(b Fingerprint) bool {
	return a.Compare(b) < 0
}

// Equal reports byte-wise equality.
func (a Fingerprint) Equal(b Fingerprint) bool {
	return a == b
}

// TopBits returns the most significant 8 bytes of the fingerprint as a
// little-endian uint64, used for coarse bucketing (duplicate-candidate
// sharding, sampling) without comparing the full digest.
func (a Fingerprint) TopBits() uint64 {
	return binary.LittleEndian.Uint64(a[Size-wordSize:])
}

// Not returns the bitwise complement of f.
func (f Fingerprint) Not() Fingerprint {
	var out Fingerprint
	for i := range f {
		out[i] = ^f[i]
	}
	return out
}

// Add returns a+b treating both as a little-endian multi-word unsigned
// integer, wrapping silently on overflow (the top carry is discarded).
func (a Fingerprint) Add(b Fingerprint) Fingerprint {
	var out Fingerprint
	var carry uint64
	for i := 0; i < words; i++ {
		wa := binary.LittleEndian.Uint64(a[i*wordSize : (i+1)*wordSize])
		wb := binary.LittleEndian.Uint64(b[i*wordSize : (i+1)*wordSize])
		sum := wa + wb + carry
		if sum < wa || (carry == 1 && sum == wa) {
			carry = 1
		} else {
			carry = 0
		}
		binary.LittleEndian.PutUint64(out[i*wordSize:(i+1)*wordSize], sum)
	}
	return out
}

// Sub returns a-b treating both as a little-endian multi-word unsigned
// integer, wrapping silently on underflow.
func (a Fingerprint) Sub(b Fingerprint) Fingerprint {
	var out Fingerprint
	var borrow uint64
	for i := 0; i < words; i++ {
		wa := binary.LittleEndian.Uint64(a[i*wordSize : (i+1)*wordSize])
		wb := binary.LittleEndian.Uint64(b[i*wordSize : (i+1)*wordSize])
		diff := wa - wb - borrow
		if wa < wb || (borrow == 1 && wa == wb) {
			borrow = 1
		} else {
			borrow = 0
		}
		binary.LittleEndian.PutUint64(out[i*wordSize:(i+1)*wordSize], diff)
	}
	return out
}

// DivMod64 divides a, treated as a little-endian multi-word unsigned
// integer, by a 64-bit divisor, returning the quotient (same width as a)
// and the remainder. It reports ok=false when divisor is zero.
func (a Fingerprint) DivMod64(divisor uint64) (quotient Fingerprint, remainder uint64, ok bool) {
	if divisor == 0 {
		return Fingerprint{}, 0, false
	}
	var rem uint64
	for i := words - 1; i >= 0; i-- {
		word := binary.LittleEndian.Uint64(a[i*wordSize : (i+1)*wordSize])
		// rem < divisor always holds here, so the quotient fits in 64 bits.
		q, r := bits.Div64(rem, word, divisor)
		binary.LittleEndian.PutUint64(quotient[i*wordSize:(i+1)*wordSize], q)
		rem = r
	}
	return quotient, rem, true
}

// SignExtendedShiftLeft1 shifts the fingerprint left by one bit, shifting a
// 1 into the new least-significant bit when the most significant bit
// (before the shift) was set. This "sign-reduced" rotation is used to
// encode signed differences as an unsigned multi-word integer without
// losing the sign in the top bit.
func (f Fingerprint) SignExtendedShiftLeft1() Fingerprint {
	topBitSet := f[Size-1]&0x80 != 0
	var out Fingerprint
	var carry byte
	for i := 0; i < Size; i++ {
		b := f[i]
		out[i] = (b << 1) | carry
		carry = b >> 7
	}
	if topBitSet {
		out[0] |= 1
	}
	return out
}
