package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// Reader gives read-only access to one published segment. All methods are
// safe for concurrent use.
type Reader struct {
	file       *os.File
	filePath   string
	header     Header
	dict       []DictEntry
	norms      []byte
	normTotals []uint64
	offsets    []uint64

	postings sync.Map
	group    singleflight.Group
}

// OpenReader opens the segment at path and verifies its footer checksum and
// region layout. Any mismatch is reported as ErrCorruptIndex.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening segment file: %w", apperrors.ErrCorruptIndex, err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	corrupt := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.ErrCorruptIndex, "segment %s: "+format, append([]any{path}, args...)...)
	}

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat segment file: %w", apperrors.ErrCorruptIndex, err)
	}
	size := st.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, corrupt("file is %d bytes, too short", size)
	}

	footerBytes := make([]byte, FooterSize)
	if _, err := f.ReadAt(footerBytes, size-int64(FooterSize)); err != nil {
		return nil, corrupt("reading footer: %v", err)
	}
	footer := decodeFooter(footerBytes)
	if footer.Magic != MagicBytes {
		return nil, corrupt("bad footer magic %x", footer.Magic)
	}
	if footer.BodyLen != size-int64(FooterSize) {
		return nil, corrupt("footer records %d body bytes, file has %d", footer.BodyLen, size-int64(FooterSize))
	}
	hasher := xxhash.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(f, 0, footer.BodyLen)); err != nil {
		return nil, corrupt("reading body: %v", err)
	}
	if sum := hasher.Sum64(); sum != footer.Checksum {
		return nil, corrupt("checksum mismatch: footer %016x, computed %016x", footer.Checksum, sum)
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, corrupt("reading header: %v", err)
	}
	header := decodeHeader(headerBytes)
	if err := header.validate(footer.BodyLen); err != nil {
		return nil, corrupt("%v", err)
	}
	if header.DocCount != footer.DocCount || header.TermCount != footer.TermCount {
		return nil, corrupt("header and footer counts disagree")
	}

	r := &Reader{
		file:     f,
		filePath: path,
		header:   header,
	}
	dictBytes, err := r.readRegion(header.Dict)
	if err != nil {
		return nil, corrupt("reading dictionary: %v", err)
	}
	if r.dict, err = decodeDict(dictBytes, header); err != nil {
		return nil, corrupt("parsing dictionary: %v", err)
	}
	if r.norms, err = r.readRegion(header.Norms); err != nil {
		return nil, corrupt("reading norms: %v", err)
	}
	r.normTotals = make([]uint64, header.NormFields)
	for i := 0; i+4 <= len(r.norms); i += 4 {
		slot := (i / 4) % int(header.NormFields)
		r.normTotals[slot] += uint64(binary.LittleEndian.Uint32(r.norms[i:]))
	}
	tableLen := (int64(header.DocCount) + 1) * 8
	table, err := r.readRegion(region{Offset: header.Stored.Offset, Size: tableLen})
	if err != nil {
		return nil, corrupt("reading stored offsets: %v", err)
	}
	r.offsets = make([]uint64, header.DocCount+1)
	blobLen := uint64(header.Stored.Size - tableLen)
	for i := range r.offsets {
		r.offsets[i] = binary.LittleEndian.Uint64(table[i*8:])
		if r.offsets[i] > blobLen || (i > 0 && r.offsets[i] < r.offsets[i-1]) {
			return nil, corrupt("stored offset %d out of order", i)
		}
	}
	return r, nil
}

func (r *Reader) readRegion(reg region) ([]byte, error) {
	buf := make([]byte, reg.Size)
	if _, err := r.file.ReadAt(buf, reg.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeDict(buf []byte, h Header) ([]DictEntry, error) {
	next := func() (uint64, error) {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return 0, fmt.Errorf("truncated varint")
		}
		buf = buf[n:]
		return v, nil
	}
	count, err := next()
	if err != nil {
		return nil, err
	}
	if count != uint64(h.TermCount) {
		return nil, fmt.Errorf("dictionary holds %d terms, header says %d", count, h.TermCount)
	}
	dict := make([]DictEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var vals [2]uint64
		for j := range vals {
			if vals[j], err = next(); err != nil {
				return nil, err
			}
		}
		field, tokenLen := vals[0], vals[1]
		if tokenLen > uint64(len(buf)) {
			return nil, fmt.Errorf("term %d overruns dictionary", i)
		}
		token := string(buf[:tokenLen])
		buf = buf[tokenLen:]
		var post [3]uint64
		for j := range post {
			if post[j], err = next(); err != nil {
				return nil, err
			}
		}
		entry := DictEntry{
			Term:       index.Term{Field: int(field), Token: token},
			PostOffset: int64(post[0]),
			PostLen:    int64(post[1]),
			DocFreq:    uint32(post[2]),
		}
		if entry.PostOffset+entry.PostLen > h.Postings.Size {
			return nil, fmt.Errorf("postings for %q overrun postings region", token)
		}
		if len(dict) > 0 && dict[len(dict)-1].Term.Compare(entry.Term) >= 0 {
			return nil, fmt.Errorf("dictionary not sorted at term %d", i)
		}
		dict = append(dict, entry)
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%d trailing dictionary bytes", len(buf))
	}
	return dict, nil
}

func (r *Reader) lookup(term index.Term) (DictEntry, bool) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term.Compare(term) >= 0
	})
	if i >= len(r.dict) || r.dict[i].Term != term {
		return DictEntry{}, false
	}
	return r.dict[i], true
}

// DocFreq returns the number of documents in this segment containing term.
func (r *Reader) DocFreq(term index.Term) uint32 {
	entry, ok := r.lookup(term)
	if !ok {
		return 0
	}
	return entry.DocFreq
}

// Postings returns the posting list of term, or nil when the segment does
// not contain it. Decoded lists are cached; concurrent callers asking for
// the same term share one read.
func (r *Reader) Postings(term index.Term) (index.PostingList, error) {
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	if cached, ok := r.postings.Load(term); ok {
		return cached.(index.PostingList), nil
	}
	key := fmt.Sprintf("%d\x00%s", term.Field, term.Token)
	val, err, _ := r.group.Do(key, func() (any, error) {
		if cached, ok := r.postings.Load(term); ok {
			return cached, nil
		}
		buf, err := r.readRegion(region{Offset: r.header.Postings.Offset + entry.PostOffset, Size: entry.PostLen})
		if err != nil {
			return nil, fmt.Errorf("%w: reading postings: %w", apperrors.ErrIO, err)
		}
		postings, err := decodePostings(buf, entry.DocFreq, r.header.DocCount)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "segment %s term %q: %v", r.filePath, term.Token, err)
		}
		r.postings.Store(term, postings)
		return postings, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(index.PostingList), nil
}

// decodePostings reverses appendPostings and checks every structural
// invariant: doc ids ascending and in range, frequencies matching the
// number of strictly increasing positions.
func decodePostings(buf []byte, docFreq, docCount uint32) (index.PostingList, error) {
	next := func() (uint64, error) {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return 0, fmt.Errorf("truncated varint")
		}
		buf = buf[n:]
		return v, nil
	}
	postings := make(index.PostingList, 0, docFreq)
	var doc uint64
	for i := uint32(0); i < docFreq; i++ {
		delta, err := next()
		if err != nil {
			return nil, err
		}
		if i > 0 && delta == 0 {
			return nil, fmt.Errorf("posting %d repeats a document", i)
		}
		doc += delta
		if doc >= uint64(docCount) {
			return nil, fmt.Errorf("document %d out of range", doc)
		}
		freq, err := next()
		if err != nil {
			return nil, err
		}
		if freq == 0 || freq > uint64(len(buf)) {
			return nil, fmt.Errorf("invalid frequency %d", freq)
		}
		positions := make([]uint32, freq)
		var pos uint64
		for j := range positions {
			d, err := next()
			if err != nil {
				return nil, err
			}
			if j > 0 && d == 0 {
				return nil, fmt.Errorf("positions not increasing in document %d", doc)
			}
			pos += d
			if pos > uint64(^uint32(0)) {
				return nil, fmt.Errorf("position overflow in document %d", doc)
			}
			positions[j] = uint32(pos)
		}
		postings = append(postings, index.Posting{
			DocID:     uint32(doc),
			Frequency: uint32(freq),
			Positions: positions,
		})
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%d trailing postings bytes", len(buf))
	}
	return postings, nil
}

// Stored returns the stored field values of a document.
func (r *Reader) Stored(doc uint32) (map[string][]string, error) {
	if doc >= r.header.DocCount {
		return nil, apperrors.Newf(apperrors.ErrInvalidAddress, "document %d out of range (segment holds %d)", doc, r.header.DocCount)
	}
	start, end := r.offsets[doc], r.offsets[doc+1]
	base := r.header.Stored.Offset + (int64(r.header.DocCount)+1)*8
	buf, err := r.readRegion(region{Offset: base + int64(start), Size: int64(end - start)})
	if err != nil {
		return nil, fmt.Errorf("%w: reading stored fields: %w", apperrors.ErrIO, err)
	}
	var fields map[string][]string
	if err := json.Unmarshal(buf, &fields); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "segment %s document %d: parsing stored fields: %v", r.filePath, doc, err)
	}
	return fields, nil
}

// FieldLength returns the token count of the indexed field in norm slot
// slot of doc.
func (r *Reader) FieldLength(doc uint32, slot int) uint32 {
	if doc >= r.header.DocCount || slot < 0 || slot >= int(r.header.NormFields) {
		return 0
	}
	off := (int(doc)*int(r.header.NormFields) + slot) * 4
	return binary.LittleEndian.Uint32(r.norms[off:])
}

// FieldLengthTotal returns the summed token count of a norm slot across
// every document of the segment.
func (r *Reader) FieldLengthTotal(slot int) uint64 {
	if slot < 0 || slot >= len(r.normTotals) {
		return 0
	}
	return r.normTotals[slot]
}

// Verify decodes every posting list, reporting the first structural error.
func (r *Reader) Verify() error {
	for _, entry := range r.dict {
		if _, err := r.Postings(entry.Term); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// NormFields is the number of indexed fields the segment was written with.
func (r *Reader) NormFields() int {
	return int(r.header.NormFields)
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
