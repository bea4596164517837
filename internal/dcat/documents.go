package dcat

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"dcat-go/internal/checksum"
	"dcat-go/internal/framing"
	"dcat-go/internal/model"
)

// AddDocument stores the file at rawPath as the first blob of a new
// document.
func (s *CatalogService) AddDocument(rawPath, notes string) (*model.Document, error) {
	now := s.clock.Now().UTC()
	doc := &model.Document{
		ID:        s.idgen.New(),
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	blob, err := s.newBlob(rawPath, doc.ID, 1)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateDocument(doc); err != nil {
		s.store.Rollback()
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if err := s.store.UpsertBlob(blob); err != nil {
		s.store.Rollback()
		return nil, fmt.Errorf("saving blob: %w", err)
	}
	if _, err := s.commit("document"); err != nil {
		return nil, fmt.Errorf("committing document: %w", err)
	}

	doc.Blobs = []*model.DocumentBlob{blob}
	s.logger.Info("document added", "id", doc.ID, "length", blob.Length, "stored", len(blob.Payload), "framing", blob.Framing)
	return doc, nil
}

// AddBlob appends the file at rawPath to an existing document and returns
// the new blob.
func (s *CatalogService) AddBlob(documentID, rawPath string) (*model.DocumentBlob, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidArgument)
	}
	blobs, err := s.store.ListBlobs(documentID)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	if len(blobs) == 0 {
		doc, err := s.store.FindDocument(documentID)
		if err != nil {
			return nil, fmt.Errorf("finding document: %w", err)
		}
		if doc == nil {
			return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
	}

	next := 1
	for _, b := range blobs {
		if b.BlobNumber >= next {
			next = b.BlobNumber + 1
		}
	}

	blob, err := s.newBlob(rawPath, documentID, next)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertBlob(blob); err != nil {
		s.store.Rollback()
		return nil, fmt.Errorf("saving blob: %w", err)
	}
	if _, err := s.commit("blob"); err != nil {
		return nil, fmt.Errorf("committing blob: %w", err)
	}
	return blob, nil
}

// GetDocument returns a document and its blob metadata.
func (s *CatalogService) GetDocument(id string) (*model.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidArgument)
	}
	doc, err := s.store.FindDocument(id)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, nil
}

// newBlob reads a file whole and builds the blob row for it: hashes over
// the raw bytes, then the payload packed by the blob policy.
func (s *CatalogService) newBlob(rawPath, documentID string, number int) (*model.DocumentBlob, error) {
	if rawPath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	p, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rawPath, err)
	}
	if p.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, p.String())
	}

	r, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.String(), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.String(), err)
	}

	blob := &model.DocumentBlob{
		DocumentID:  documentID,
		BlobNumber:  number,
		Extension:   strings.TrimPrefix(strings.ToLower(filepath.Ext(p.String())), "."),
		ContentHash: s.opts.Digest.Encode(s.opts.Digest.SumBytes(data)),
		CRC32:       checksum.Bytes(data),
		Length:      int64(len(data)),
		CreatedAt:   s.clock.Now().UTC(),
	}
	blob.MimeType = mimeType(blob.Extension, data)

	payload, kind, err := s.opts.Blobs.Pack(data)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", p.String(), err)
	}
	blob.Payload = payload
	blob.Framing = kind.String()
	return blob, nil
}

func mimeType(ext string, data []byte) string {
	if ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}

// ReadBlob returns the raw bytes of a stored blob after checking them
// against the recorded CRC and digest.
func (s *CatalogService) ReadBlob(documentID string, number int) ([]byte, *model.DocumentBlob, error) {
	if documentID == "" || number <= 0 {
		return nil, nil, fmt.Errorf("%w: blob %q/%d", ErrInvalidArgument, documentID, number)
	}
	blob, err := s.store.FindBlob(documentID, number)
	if err != nil {
		return nil, nil, fmt.Errorf("finding blob: %w", err)
	}
	if blob == nil {
		return nil, nil, fmt.Errorf("blob %s/%d: %w", documentID, number, ErrNotFound)
	}

	kind, err := framing.ParseKind(blob.Framing)
	if err != nil {
		return nil, nil, fmt.Errorf("blob %s/%d: %w", documentID, number, err)
	}
	data, err := framing.Unpack(blob.Payload, blob.Length, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("unpacking blob %s/%d: %w", documentID, number, err)
	}

	if crc := checksum.Bytes(data); crc != blob.CRC32 {
		return nil, nil, fmt.Errorf("blob %s/%d crc %08X, recorded %08X: %w", documentID, number, crc, blob.CRC32, framing.ErrIntegrity)
	}
	if blob.ContentHash != "" {
		sum, err := s.opts.Digest.Decode(blob.ContentHash)
		if err != nil {
			return nil, nil, fmt.Errorf("blob %s/%d digest: %w", documentID, number, err)
		}
		if !bytes.Equal(sum, s.opts.Digest.SumBytes(data)) {
			return nil, nil, fmt.Errorf("blob %s/%d digest mismatch: %w", documentID, number, framing.ErrIntegrity)
		}
	}
	return data, blob, nil
}
