package sumfile

import "io"

// Writer serializes a complete sum file: a main header, then any number
// of blocks, finished by a single End block whose digest covers every
// preceding byte. Writer is single-use — call Close exactly once after
// writing all blocks.
type Writer struct {
	w       io.Writer
	digest  *EndDigester
	mw      io.Writer
	version Version
	closed  bool
}

// NewWriter starts a new sum file on w, writing the main header
// immediately using version's payload-encoding rules (only version 1.0.0
// is registered today; see codecv1.go).
func NewWriter(w io.Writer, version Version, payload [57]byte) (*Writer, error) {
	digest := NewEndDigester()
	mw := io.MultiWriter(w, digest)
	if err := WriteMainHeader(mw, MainHeader{Version: version, Payload: payload}); err != nil {
		return nil, err
	}
	return &Writer{w: w, digest: digest, mw: mw, version: version}, nil
}

// WriteHashes appends chunk as a Hashes block.
func (wr *Writer) WriteHashes(chunk *HashesChunk) error {
	if err := chunk.WriteHeader(wr.mw); err != nil {
		return err
	}
	return chunk.WriteBody(wr.mw)
}

// WriteNames appends chunk as a Names block.
func (wr *Writer) WriteNames(chunk *NamesChunk) error {
	if err := chunk.WriteHeader(wr.mw); err != nil {
		return err
	}
	return chunk.WriteBody(wr.mw)
}

// Close writes the terminating End block, whose payload digests every
// byte written before this call, and marks the Writer unusable.
func (wr *Writer) Close() error {
	if wr.closed {
		return nil
	}
	wr.closed = true
	digest := wr.digest.Sum()
	return WriteEndBlock(wr.w, digest)
}
