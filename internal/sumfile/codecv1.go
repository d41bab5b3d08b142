package sumfile

import "fmt"

// codecV1 is the sole registered codec: version 1.0.0, no additional
// variable-length header, and a minimal payload (currently unused beyond
// the version triple itself — the 57-byte payload is reserved for future
// per-file metadata such as a default hash-type pair).
type codecV1 struct{}

func init() {
	RegisterCodec(codecV1{})
}

func (codecV1) Version() Version {
	return Version{1, 0, 0}
}

func (codecV1) DecodeHeaderFields(payload [57]byte, header *MainHeader) error {
	header.Payload = payload
	return nil
}

func (codecV1) DecodeAdditionalHeader(r *CountingReader, header *MainHeader) error {
	// v1 has no additional header beyond the fixed 64 bytes.
	return nil
}

func (codecV1) DecodeBlock(first64 [64]byte, r *CountingReader, header *MainHeader) (any, error) {
	if [3]byte(first64[0:3]) != blockMagic {
		return nil, fmt.Errorf("%w: block magic", ErrFormatMagic)
	}
	switch first64[3] {
	case blockTypeHashes:
		order, count, nameType, dataType, err := ReadHashesHeader(first64)
		if err != nil {
			return nil, err
		}
		entries, err := ReadHashesBody(r, count, nameType, dataType)
		if err != nil {
			return nil, err
		}
		return &HashesChunk{Order: order, NameHashType: nameType, DataHashType: dataType, Entries: entries}, nil
	case blockTypeNames:
		return ReadNamesBody(r)
	case blockTypeInfo:
		return nil, fmt.Errorf("sumfile: info block decoding not implemented in v1")
	case blockTypeEnd:
		digest, err := ReadEndBlock(r)
		if err != nil {
			return nil, err
		}
		return digest, nil
	default:
		return nil, fmt.Errorf("%w: type byte 0x%02x", ErrBlockType, first64[3])
	}
}
