package sumfile

import (
	"errors"
	"fmt"
	"io"
)

// Reader walks a sum file's block stream after its main header has been
// parsed, dispatching each block to the codec matching the file's
// version.
type Reader struct {
	r      io.Reader
	codec  Codec
	Header MainHeader
}

// NewReader parses r's main header and any codec-specific additional
// header, resolving the codec from the registry.
func NewReader(r io.Reader) (*Reader, error) {
	header, err := ReadMainHeader(r)
	if err != nil {
		return nil, err
	}
	codec, err := CodecFor(header.Version)
	if err != nil {
		return nil, err
	}
	if err := codec.DecodeHeaderFields(header.Payload, &header); err != nil {
		return nil, fmt.Errorf("sumfile: decoding header fields: %w", err)
	}
	cr := NewCountingReader(r)
	if err := codec.DecodeAdditionalHeader(cr, &header); err != nil {
		return nil, fmt.Errorf("sumfile: decoding additional header: %w", err)
	}
	if err := cr.Err(); err != nil {
		return nil, err
	}
	return &Reader{r: r, codec: codec, Header: header}, nil
}

// Next reads and decodes the next block. It returns ErrEndOfStream once
// an End block has been consumed (the stream is positioned at its natural
// end; there is nothing meaningful to read after it).
func (rd *Reader) Next() (any, error) {
	first64, blockType, err := ReadBlockHeader(rd.r)
	if err != nil {
		return nil, err
	}
	cr := NewCountingReader(rd.r)
	block, err := rd.codec.DecodeBlock(first64, cr, &rd.Header)
	if err != nil {
		return nil, err
	}
	if cerr := cr.Err(); cerr != nil {
		return nil, cerr
	}
	if blockType == blockTypeEnd {
		return block, ErrEndOfStream
	}
	return block, nil
}

// ReadAll drains every block from the stream, returning them in file
// order along with the End block's digest, or an error if the stream is
// malformed or ends without an End block.
func ReadAll(r io.Reader) ([]any, [EndBlockPayloadSize]byte, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, [EndBlockPayloadSize]byte{}, err
	}

	var blocks []any
	for {
		block, err := rd.Next()
		if errors.Is(err, ErrEndOfStream) {
			digest, ok := block.([EndBlockPayloadSize]byte)
			if !ok {
				return blocks, [EndBlockPayloadSize]byte{}, fmt.Errorf("sumfile: end block decoded unexpected type %T", block)
			}
			return blocks, digest, nil
		}
		if err != nil {
			return blocks, [EndBlockPayloadSize]byte{}, err
		}
		blocks = append(blocks, block)
	}
}
