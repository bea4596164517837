package dcat

import (
	"database/sql"

	"dcat-go/internal/model"
)

// HashCursor is the keyset position of a hash sweep: the (size, id) of
// the last file handed out. The zero value starts from the beginning.
type HashCursor struct {
	Size int64
	ID   int64
}

// Store is the catalog persistence the service needs. Lookups that find
// nothing return nil and no error. Writes join a transaction that stays
// open until Commit.
type Store interface {
	FindDriveByID(id int64) (*model.Drive, error)
	FindDriveBySerial(serial string) (*model.Drive, error)
	// FindDrivesByGeometry returns drives sharing format, size and type,
	// ordered by id.
	FindDrivesByGeometry(format string, totalSize int64, driveType string) ([]*model.Drive, error)
	ListDrives() ([]*model.Drive, error)
	// UpsertDrive inserts a drive with ID 0 or updates an existing one,
	// and unions its machine names into the stored set.
	UpsertDrive(d *model.Drive) (*model.Drive, error)

	// FindFiles matches a directory and name on one drive, or on any
	// drive when driveID is null.
	FindFiles(directoryPath, fileName string, driveID sql.NullInt64) ([]*model.File, error)
	FindFileByID(id int64) (*model.File, error)
	// FindFilesByName matches a file name on every drive.
	FindFilesByName(fileName string) ([]*model.File, error)
	// ListFilesByDrive pages through a drive's files in id order.
	ListFilesByDrive(driveID int64, afterID int64, limit int) ([]*model.File, error)
	// FilesMissingHash returns existing files of a drive that lack a
	// digest or CRC, in ascending (size, id) order after the cursor.
	FilesMissingHash(driveID int64, after HashCursor, limit int) ([]*model.File, error)
	// UpsertFile inserts a file with ID 0 (setting its ID) or updates it.
	UpsertFile(f *model.File) error

	UpsertDuplicate(c *model.DuplicateCandidate) error
	FindDuplicates(fileID int64) ([]*model.DuplicateCandidate, error)

	CreateDocument(doc *model.Document) error
	// FindDocument returns a document with its blobs, payloads omitted.
	FindDocument(id string) (*model.Document, error)
	UpsertBlob(b *model.DocumentBlob) error
	FindBlob(documentID string, blobNumber int) (*model.DocumentBlob, error)
	// ListBlobs returns a document's blobs in blob number order, payloads
	// omitted.
	ListBlobs(documentID string) ([]*model.DocumentBlob, error)

	CreateOperation(operation, parameters string) (*model.Operation, error)
	FinishOperation(id int64, status string) error
	ListOperations(limit int) ([]*model.Operation, error)
	MaxOperationID() (int64, error)

	// Commit ends the open transaction and returns the number of rows it
	// changed. With no open transaction it returns 0.
	Commit() (int64, error)
	// Rollback discards the open transaction, if any.
	Rollback() error
}

// Database is a Store the app layer also maintains and snapshots.
type Database interface {
	Store

	// CheckMigrations reports whether the schema is current.
	CheckMigrations() error
	// BackupTo writes a consistent copy of the catalog to destPath.
	BackupTo(destPath string) error
	// Schema returns the CREATE statements of the catalog tables.
	Schema() (string, error)
	Close() error
}
