package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
)

// Info describes a segment that has been written and published.
type Info struct {
	ID    string
	File  string
	Docs  uint32
	Terms uint32
	Bytes int64
}

// Writer serialises builder snapshots into new .seg segment files.
type Writer struct {
	dataDir string
	logger  *slog.Logger
	// syncFile and syncDir are replaced in tests to simulate flush failures.
	syncFile func(*os.File) error
	syncDir  func(string) error
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{
		dataDir:  dataDir,
		logger:   logger.WithComponent("segment-writer"),
		syncFile: (*os.File).Sync,
		syncDir:  SyncDir,
	}
}

// Write creates a new segment file containing snap. The file is written to
// a .tmp path, flushed, and renamed into place only after the checksum
// footer is on disk, so a failed write never leaves a visible segment. The
// one exception is a directory sync failure after the rename whose cleanup
// also fails: then the error comes with a populated Info naming the file.
func (w *Writer) Write(snap *index.Snapshot) (Info, error) {
	id := uuid.NewString()
	name := id + FileExt
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + tmpExt

	body, header, err := encode(snap)
	if err != nil {
		return Info{}, err
	}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return Info{}, fmt.Errorf("%w: creating temp segment file: %w", apperrors.ErrIO, err)
	}
	published := false
	defer func() {
		if !published {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := xxhash.New()
	bw := bufio.NewWriterSize(f, 64*1024)
	out := io.MultiWriter(bw, hasher)
	if _, err := out.Write(header.encode()); err != nil {
		return Info{}, fmt.Errorf("%w: writing header: %w", apperrors.ErrIO, err)
	}
	for _, part := range body {
		if _, err := out.Write(part); err != nil {
			return Info{}, fmt.Errorf("%w: writing segment body: %w", apperrors.ErrIO, err)
		}
	}
	bodyLen := header.Stored.end()
	footer := Footer{
		Checksum:  hasher.Sum64(),
		BodyLen:   bodyLen,
		DocCount:  header.DocCount,
		TermCount: header.TermCount,
		Magic:     MagicBytes,
		Version:   FormatVersion,
	}
	if _, err := bw.Write(footer.encode()); err != nil {
		return Info{}, fmt.Errorf("%w: writing footer: %w", apperrors.ErrIO, err)
	}
	if err := bw.Flush(); err != nil {
		return Info{}, fmt.Errorf("%w: flushing segment file: %w", apperrors.ErrIO, err)
	}
	if err := w.syncFile(f); err != nil {
		return Info{}, fmt.Errorf("%w: syncing segment file: %w", apperrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("%w: closing segment file: %w", apperrors.ErrIO, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Info{}, fmt.Errorf("%w: renaming segment file: %w", apperrors.ErrIO, err)
	}
	published = true

	info := Info{
		ID:    id,
		File:  name,
		Docs:  header.DocCount,
		Terms: header.TermCount,
		Bytes: bodyLen + int64(FooterSize),
	}
	if err := w.syncDir(w.dataDir); err != nil {
		if rmErr := os.Remove(finalPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			w.logger.Error("removing unsynced segment", "segment", name, "error", rmErr)
			return info, err
		}
		return Info{}, err
	}
	w.logger.Debug("segment written",
		"segment", name,
		"docs", info.Docs,
		"terms", info.Terms,
		"bytes", info.Bytes,
	)
	return info, nil
}

// SyncDir fsyncs a directory so that renames inside it are durable.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: opening directory %s: %w", apperrors.ErrIO, dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: syncing directory %s: %w", apperrors.ErrIO, dir, err)
	}
	return nil
}

// encode lays out the four body regions and returns them in file order
// together with the matching header.
func encode(snap *index.Snapshot) ([][]byte, Header, error) {
	postings := make([]byte, 0, 1024)
	dict := binary.AppendUvarint(make([]byte, 0, 1024), uint64(len(snap.Terms)))
	for _, entry := range snap.Terms {
		start := len(postings)
		postings = appendPostings(postings, entry.Postings)
		dict = binary.AppendUvarint(dict, uint64(entry.Term.Field))
		dict = binary.AppendUvarint(dict, uint64(len(entry.Term.Token)))
		dict = append(dict, entry.Term.Token...)
		dict = binary.AppendUvarint(dict, uint64(start))
		dict = binary.AppendUvarint(dict, uint64(len(postings)-start))
		dict = binary.AppendUvarint(dict, uint64(len(entry.Postings)))
	}

	norms := make([]byte, 0, int(snap.DocCount)*snap.NormFields*4)
	for docID, row := range snap.Norms {
		if len(row) != snap.NormFields {
			return nil, Header{}, fmt.Errorf("document %d has %d field lengths, expected %d", docID, len(row), snap.NormFields)
		}
		for _, n := range row {
			norms = binary.LittleEndian.AppendUint32(norms, n)
		}
	}

	offsets := make([]byte, 0, (len(snap.Stored)+1)*8)
	var docs []byte
	for _, fields := range snap.Stored {
		offsets = binary.LittleEndian.AppendUint64(offsets, uint64(len(docs)))
		if fields == nil {
			fields = map[string][]string{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, Header{}, fmt.Errorf("marshaling stored fields: %w", err)
		}
		docs = append(docs, data...)
	}
	offsets = binary.LittleEndian.AppendUint64(offsets, uint64(len(docs)))
	stored := append(offsets, docs...)

	h := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		DocCount:   snap.DocCount,
		TermCount:  uint32(len(snap.Terms)),
		NormFields: uint32(snap.NormFields),
		CreatedAt:  time.Now().Unix(),
	}
	next := int64(HeaderSize)
	for _, r := range []struct {
		dst  *region
		size int
	}{
		{&h.Postings, len(postings)},
		{&h.Dict, len(dict)},
		{&h.Norms, len(norms)},
		{&h.Stored, len(stored)},
	} {
		*r.dst = region{Offset: next, Size: int64(r.size)}
		next += int64(r.size)
	}
	return [][]byte{postings, dict, norms, stored}, h, nil
}

// appendPostings delta-encodes doc ids and positions as uvarints.
func appendPostings(buf []byte, postings index.PostingList) []byte {
	var prevDoc uint32
	for i, p := range postings {
		delta := p.DocID
		if i > 0 {
			delta = p.DocID - prevDoc
		}
		buf = binary.AppendUvarint(buf, uint64(delta))
		buf = binary.AppendUvarint(buf, uint64(p.Frequency))
		var prevPos uint32
		for j, pos := range p.Positions {
			d := pos
			if j > 0 {
				d = pos - prevPos
			}
			buf = binary.AppendUvarint(buf, uint64(d))
			prevPos = pos
		}
		prevDoc = p.DocID
	}
	return buf
}
