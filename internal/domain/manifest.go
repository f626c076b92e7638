package domain

import "time"

type EncryptionMethod string

const (
	EncryptNone   EncryptionMethod = ""
	EncryptAES128 EncryptionMethod = "AES-128"
)

// ByteRange is an inclusive byte span of a segment's source resource.
// A zero Length means "whole resource".
type ByteRange struct {
	Offset int64
	Length int64
}

func (r ByteRange) IsZero() bool { return r.Length == 0 }

// KeyRef identifies the content key protecting one segment.
type KeyRef struct {
	URI    string
	Method EncryptionMethod
	// IV is the explicit initialization vector from the playlist, if any.
	// Empty means derive from the segment's media sequence number.
	IV []byte
}

// SegmentDescriptor is one addressable chunk of media. Index is authoritative
// for reassembly order; arrival order never is.
type SegmentDescriptor struct {
	Index    int
	URL      string
	Range    ByteRange
	Key      *KeyRef
	Duration time.Duration
	// Sequence is the playlist media sequence number, used to derive an IV
	// when the key tag carries none.
	Sequence uint64
}

// Manifest is the parsed form of a media playlist: a dense, ordered list of
// segments. Built once per download invocation and discarded after.
type Manifest struct {
	Segments []SegmentDescriptor
	Duration time.Duration
}

// Variant is one alternative-quality stream referenced by a master playlist.
type Variant struct {
	URI       string
	Bandwidth uint32
	Resolution string
}

// MasterManifest references variants instead of segments. The caller fetches
// the chosen variant's document and parses it as a media playlist.
type MasterManifest struct {
	Variants []Variant
}
