package sumfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rybkr/sumtree/internal/bungee"
	"github.com/rybkr/sumtree/internal/fingerprint"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewWriter(&buf, Version{1, 0, 0}, [57]byte{})
	if err != nil {
		t.Fatal(err)
	}

	hashes := &HashesChunk{
		Order:        SortedByName,
		NameHashType: fingerprint.HashSHA256,
		DataHashType: fingerprint.HashSHA256,
		Entries: []Entry{
			{NameHash: mkFingerprint(1), ContentHash: mkFingerprint(9)},
			{NameHash: mkFingerprint(2), ContentHash: mkFingerprint(8)},
		},
	}
	if err := w.WriteHashes(hashes); err != nil {
		t.Fatal(err)
	}

	arena := bungee.New()
	idx := arena.PushString(0, "file.txt")
	names := &NamesChunk{Arena: arena, Indices: []bungee.Index{idx}}
	if err := w.WriteNames(names); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	blocks, digest, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}

	gotHashes, ok := blocks[0].(*HashesChunk)
	if !ok {
		t.Fatalf("block 0 type = %T, want *HashesChunk", blocks[0])
	}
	if len(gotHashes.Entries) != 2 || gotHashes.Entries[0] != hashes.Entries[0] {
		t.Fatalf("hashes round trip mismatch: %+v", gotHashes)
	}

	gotNames, ok := blocks[1].(*NamesChunk)
	if !ok {
		t.Fatalf("block 1 type = %T, want *NamesChunk", blocks[1])
	}
	if path := gotNames.Arena.PathOf("/", gotNames.Indices[0]); path != "file.txt" {
		t.Fatalf("names round trip path = %q, want \"file.txt\"", path)
	}

	var zero [EndBlockPayloadSize]byte
	if digest == zero {
		t.Fatal("End block digest should not be all-zero for a non-empty file")
	}
}

func TestReadMainHeaderRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte("XXXX"))
	buf.Write(make([]byte, 60))
	_, err := ReadMainHeader(&buf)
	if !errors.Is(err, ErrFormatMagic) {
		t.Fatalf("error = %v, want ErrFormatMagic", err)
	}
}

func TestCodecForUnknownVersion(t *testing.T) {
	_, err := CodecFor(Version{9, 9, 9})
	if !errors.Is(err, ErrFormatVersion) {
		t.Fatalf("error = %v, want ErrFormatVersion", err)
	}
}

func TestLatestVersionIsLexMax(t *testing.T) {
	got := LatestVersion()
	if got != (Version{1, 0, 0}) {
		t.Fatalf("LatestVersion() = %v, want 1.0.0 (only registered codec)", got)
	}
}

func TestCountingReaderAccumulatesBytes(t *testing.T) {
	r := bytes.NewReader([]byte("hello world"))
	cr := NewCountingReader(r)
	buf := make([]byte, 5)
	if _, err := cr.Read(buf); err != nil {
		t.Fatal(err)
	}
	if cr.Count != 5 {
		t.Fatalf("Count = %d, want 5", cr.Count)
	}
	if cr.Err() != nil {
		t.Fatalf("Err() = %v, want nil", cr.Err())
	}
}

func TestReadBlockHeaderEndOfStream(t *testing.T) {
	_, _, err := ReadBlockHeader(bytes.NewReader(nil))
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("error = %v, want ErrEndOfStream", err)
	}
}
