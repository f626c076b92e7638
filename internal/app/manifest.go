package app

import (
	"bytes"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"vodfetch/internal/domain"
)

// ParsedPlaylist is the tagged result of decoding one playlist document:
// exactly one of Master or Media is set.
type ParsedPlaylist struct {
	Master *domain.MasterManifest
	Media  *domain.Manifest
}

// ParseManifest decodes a raw playlist document. Relative segment, key and
// variant URIs are resolved against base (the document's own fetch URL).
// No network I/O happens here: a master playlist is returned as-is and the
// caller fetches the chosen variant's document for a second parse.
func ParseManifest(raw []byte, base *url.URL) (ParsedPlaylist, error) {
	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(raw), true)
	if err != nil {
		return ParsedPlaylist{}, &domain.ParseError{Reason: "unrecognized playlist", Err: err}
	}

	switch listType {
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		out := &domain.MasterManifest{}
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			out.Variants = append(out.Variants, domain.Variant{
				URI:        resolveURL(base, v.URI),
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
			})
		}
		if len(out.Variants) == 0 {
			return ParsedPlaylist{}, &domain.ParseError{Reason: "master playlist lists no variants"}
		}
		return ParsedPlaylist{Master: out}, nil

	case m3u8.MEDIA:
		media := pl.(*m3u8.MediaPlaylist)
		out, err := mediaManifest(media, base)
		if err != nil {
			return ParsedPlaylist{}, err
		}
		return ParsedPlaylist{Media: out}, nil

	default:
		return ParsedPlaylist{}, &domain.ParseError{Reason: "unknown playlist type"}
	}
}

func mediaManifest(media *m3u8.MediaPlaylist, base *url.URL) (*domain.Manifest, error) {
	out := &domain.Manifest{}

	// EXT-X-KEY applies to every following segment until replaced.
	currentKey := media.Key

	for _, seg := range media.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		if seg.Key != nil {
			currentKey = seg.Key
		}

		desc := domain.SegmentDescriptor{
			Index:    len(out.Segments),
			URL:      resolveURL(base, seg.URI),
			Duration: time.Duration(seg.Duration * float64(time.Second)),
			Sequence: seg.SeqId,
		}
		if seg.Limit > 0 {
			desc.Range = domain.ByteRange{Offset: seg.Offset, Length: seg.Limit}
		}
		if ref := keyRef(currentKey, base); ref != nil {
			desc.Key = ref
		}

		out.Segments = append(out.Segments, desc)
		out.Duration += desc.Duration
	}

	if len(out.Segments) == 0 {
		return nil, &domain.ParseError{Reason: "playlist references zero segments"}
	}
	return out, nil
}

func keyRef(key *m3u8.Key, base *url.URL) *domain.KeyRef {
	if key == nil || key.Method == "" || strings.EqualFold(key.Method, "NONE") {
		return nil
	}
	ref := &domain.KeyRef{
		URI:    resolveURL(base, key.URI),
		Method: domain.EncryptionMethod(strings.ToUpper(key.Method)),
	}
	if iv := strings.TrimPrefix(strings.TrimPrefix(key.IV, "0x"), "0X"); iv != "" {
		if b, err := hex.DecodeString(iv); err == nil {
			ref.IV = b
		}
	}
	return ref
}

// PickVariant selects the variant to download from a master playlist:
// highest declared bandwidth wins, ties keep the earlier listing.
func PickVariant(master *domain.MasterManifest) (domain.Variant, error) {
	if master == nil || len(master.Variants) == 0 {
		return domain.Variant{}, &domain.ParseError{Reason: "master playlist lists no variants"}
	}
	best := master.Variants[0]
	for _, v := range master.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, nil
}

// resolveURL resolves a relative reference against a base URL.
func resolveURL(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}
