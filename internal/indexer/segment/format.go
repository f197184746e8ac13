package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
)

// MagicBytes identifies a valid .seg segment file ("SQSG").
const (
	MagicBytes    uint32 = 0x47535153
	FormatVersion uint32 = 1
	HeaderSize    int    = 96
	FooterSize    int    = 32
	FileExt              = ".seg"
	tmpExt               = ".tmp"
)

// region is a byte range of the segment body.
type region struct {
	Offset int64
	Size   int64
}

func (r region) end() int64 { return r.Offset + r.Size }

// Header is the 96-byte header written at the start of every segment.
type Header struct {
	Magic      uint32
	Version    uint32
	DocCount   uint32
	TermCount  uint32
	NormFields uint32
	Postings   region
	Dict       region
	Norms      region
	Stored     region
	CreatedAt  int64
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.TermCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.NormFields)
	off := 24
	for _, r := range []region{h.Postings, h.Dict, h.Norms, h.Stored} {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(r.Offset))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(r.Size))
		off += 16
	}
	binary.LittleEndian.PutUint64(buf[88:96], uint64(h.CreatedAt))
	return buf
}

func decodeHeader(buf []byte) Header {
	h := Header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		DocCount:   binary.LittleEndian.Uint32(buf[8:12]),
		TermCount:  binary.LittleEndian.Uint32(buf[12:16]),
		NormFields: binary.LittleEndian.Uint32(buf[16:20]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[88:96])),
	}
	regions := []*region{&h.Postings, &h.Dict, &h.Norms, &h.Stored}
	off := 24
	for _, r := range regions {
		r.Offset = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		r.Size = int64(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
		off += 16
	}
	return h
}

// validate checks that the regions are laid out back to back after the
// header and end exactly at bodyLen.
func (h Header) validate(bodyLen int64) error {
	if h.Magic != MagicBytes {
		return fmt.Errorf("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return fmt.Errorf("unsupported format version %d", h.Version)
	}
	next := int64(HeaderSize)
	for _, r := range []struct {
		name string
		r    region
	}{
		{"postings", h.Postings},
		{"dictionary", h.Dict},
		{"norms", h.Norms},
		{"stored", h.Stored},
	} {
		if r.r.Offset != next || r.r.Size < 0 {
			return fmt.Errorf("%s region at %d+%d, expected offset %d", r.name, r.r.Offset, r.r.Size, next)
		}
		next = r.r.end()
	}
	if next != bodyLen {
		return fmt.Errorf("regions end at %d, body is %d bytes", next, bodyLen)
	}
	want := int64(h.DocCount) * int64(h.NormFields) * 4
	if h.Norms.Size != want {
		return fmt.Errorf("norms region is %d bytes, expected %d", h.Norms.Size, want)
	}
	if h.Stored.Size < (int64(h.DocCount)+1)*8 {
		return fmt.Errorf("stored region too small for %d documents", h.DocCount)
	}
	return nil
}

// Footer is the trailing 32 bytes of a segment. Checksum covers every byte
// before the footer.
type Footer struct {
	Checksum  uint64
	BodyLen   int64
	DocCount  uint32
	TermCount uint32
	Magic     uint32
	Version   uint32
}

func (f Footer) encode() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(buf[0:8], f.Checksum)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.BodyLen))
	binary.LittleEndian.PutUint32(buf[16:20], f.DocCount)
	binary.LittleEndian.PutUint32(buf[20:24], f.TermCount)
	binary.LittleEndian.PutUint32(buf[24:28], f.Magic)
	binary.LittleEndian.PutUint32(buf[28:32], f.Version)
	return buf
}

func decodeFooter(buf []byte) Footer {
	return Footer{
		Checksum:  binary.LittleEndian.Uint64(buf[0:8]),
		BodyLen:   int64(binary.LittleEndian.Uint64(buf[8:16])),
		DocCount:  binary.LittleEndian.Uint32(buf[16:20]),
		TermCount: binary.LittleEndian.Uint32(buf[20:24]),
		Magic:     binary.LittleEndian.Uint32(buf[24:28]),
		Version:   binary.LittleEndian.Uint32(buf[28:32]),
	}
}

// DictEntry maps a term to its postings offset, length, and document
// frequency within the postings region.
type DictEntry struct {
	Term       index.Term
	PostOffset int64
	PostLen    int64
	DocFreq    uint32
}
