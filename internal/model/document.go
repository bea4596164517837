package model

import "time"

// Document groups one or more stored payloads under a UUID.
type Document struct {
	ID        string // UUID
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Blobs     []*DocumentBlob
}

// DocumentBlob is one stored payload of a document. Payload holds either
// the raw bytes or an encoded form shorter than Length; Framing names the
// encoding used in the second case.
type DocumentBlob struct {
	DocumentID  string
	BlobNumber  int
	Extension   string // Without the leading dot
	MimeType    string
	ContentHash string // Encoded digest of the raw bytes
	CRC32       uint32 // Checksum of the raw bytes
	Length      int64  // Nominal (uncompressed) length
	Framing     string // "none", "zlib" or "deflate"
	Payload     []byte
	CreatedAt   time.Time
}

// IsCompressed reports whether Payload is encoded. Only the lengths are
// consulted.
func (b *DocumentBlob) IsCompressed() bool {
	return int64(len(b.Payload)) != b.Length
}
