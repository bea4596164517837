package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dcat-go/internal/database/migrations"
	"dcat-go/internal/dcat"
	"dcat-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements dcat.Database on a single SQLite connection.
// Writes open a transaction lazily; reads made while it is open see its
// uncommitted rows.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	tx      *sql.Tx
	changed int64
	now     func() time.Time
}

// NewSQLiteStore opens the catalog at path (":memory:" for a throwaway
// catalog) and migrates it to the latest schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enforced.
// The pool holds one connection so ":memory:" catalogs stay a single
// database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

// conn returns the open transaction, or the pool when there is none.
func (s *SQLiteStore) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// write runs a mutating statement inside the lazily opened transaction.
func (s *SQLiteStore) write(query string, args ...any) (sql.Result, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(context.Background(), nil)
		if err != nil {
			return nil, fmt.Errorf("starting transaction: %w", err)
		}
		s.tx = tx
	}
	res, err := s.tx.ExecContext(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil {
		s.changed += n
	}
	return res, nil
}

// Commit ends the open transaction.
func (s *SQLiteStore) Commit() (int64, error) {
	if s.tx == nil {
		return 0, nil
	}
	n := s.changed
	err := s.tx.Commit()
	s.tx, s.changed = nil, 0
	if err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

// Rollback discards the open transaction.
func (s *SQLiteStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx, s.changed = nil, 0
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// Drive operations

const driveColumns = `id, drive_type, drive_letter, total_size, total_free_space, drive_format,
	volume_label, volume_serial_number, hardware_serial_number, model, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrive(row rowScanner) (*model.Drive, error) {
	d := &model.Drive{}
	err := row.Scan(&d.ID, &d.DriveType, &d.DriveLetter, &d.TotalSize, &d.TotalFreeSpace, &d.DriveFormat,
		&d.VolumeLabel, &d.VolumeSerialNumber, &d.HardwareSerialNumber, &d.Model, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) queryDrives(query string, args ...any) ([]*model.Drive, error) {
	rows, err := s.conn().QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	var drives []*model.Drive
	for rows.Next() {
		d, err := scanDrive(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		drives = append(drives, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Machines are loaded after the cursor is closed; the single
	// connection cannot serve two result sets.
	for _, d := range drives {
		if err := s.loadMachines(d); err != nil {
			return nil, err
		}
	}
	return drives, nil
}

func (s *SQLiteStore) findDrive(query string, args ...any) (*model.Drive, error) {
	d, err := scanDrive(s.conn().QueryRowContext(context.Background(), query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadMachines(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) loadMachines(d *model.Drive) error {
	rows, err := s.conn().QueryContext(context.Background(),
		"SELECT machine_name FROM drive_machines WHERE drive_id = ? ORDER BY machine_name", d.ID)
	if err != nil {
		return fmt.Errorf("loading machines of drive %d: %w", d.ID, err)
	}
	defer rows.Close()

	d.MachineNames = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		d.MachineNames = append(d.MachineNames, name)
	}
	return rows.Err()
}

func (s *SQLiteStore) FindDriveByID(id int64) (*model.Drive, error) {
	d, err := s.findDrive("SELECT "+driveColumns+" FROM drives WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("finding drive by id: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) FindDriveBySerial(serial string) (*model.Drive, error) {
	if serial == "" {
		return nil, nil
	}
	d, err := s.findDrive("SELECT "+driveColumns+" FROM drives WHERE volume_serial_number = ?", serial)
	if err != nil {
		return nil, fmt.Errorf("finding drive by serial: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) FindDrivesByGeometry(format string, totalSize int64, driveType string) ([]*model.Drive, error) {
	drives, err := s.queryDrives("SELECT "+driveColumns+` FROM drives
		WHERE drive_format = ? AND total_size = ? AND drive_type = ? ORDER BY id`, format, totalSize, driveType)
	if err != nil {
		return nil, fmt.Errorf("finding drives by geometry: %w", err)
	}
	return drives, nil
}

func (s *SQLiteStore) ListDrives() ([]*model.Drive, error) {
	drives, err := s.queryDrives("SELECT " + driveColumns + " FROM drives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing drives: %w", err)
	}
	return drives, nil
}

func (s *SQLiteStore) UpsertDrive(d *model.Drive) (*model.Drive, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil drive", dcat.ErrInvalidArgument)
	}
	now := s.now().UTC()
	created, updated := d.CreatedAt, d.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	id := d.ID
	if id == 0 {
		res, err := s.write(`INSERT INTO drives (drive_type, drive_letter, total_size, total_free_space, drive_format,
			volume_label, volume_serial_number, hardware_serial_number, model, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.DriveType, d.DriveLetter, d.TotalSize, d.TotalFreeSpace, d.DriveFormat,
			d.VolumeLabel, d.VolumeSerialNumber, d.HardwareSerialNumber, d.Model, d.Notes, created, updated)
		if err != nil {
			return nil, fmt.Errorf("inserting drive: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading drive id: %w", err)
		}
	} else {
		_, err := s.write(`UPDATE drives SET drive_type = ?, drive_letter = ?, total_size = ?, total_free_space = ?,
			drive_format = ?, volume_label = ?, volume_serial_number = ?, hardware_serial_number = ?, model = ?,
			notes = ?, updated_at = ? WHERE id = ?`,
			d.DriveType, d.DriveLetter, d.TotalSize, d.TotalFreeSpace, d.DriveFormat,
			d.VolumeLabel, d.VolumeSerialNumber, d.HardwareSerialNumber, d.Model, d.Notes, updated, id)
		if err != nil {
			return nil, fmt.Errorf("updating drive %d: %w", id, err)
		}
	}

	for _, m := range d.MachineNames {
		if m == "" {
			continue
		}
		if _, err := s.write("INSERT OR IGNORE INTO drive_machines (drive_id, machine_name) VALUES (?, ?)", id, m); err != nil {
			return nil, fmt.Errorf("recording machine %s for drive %d: %w", m, id, err)
		}
	}

	saved, err := s.FindDriveByID(id)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("drive %d vanished after upsert", id)
	}
	return saved, nil
}

// File operations

const fileColumns = `id, drive_id, directory_path, file_name, size, mode, is_read_only, born_at, modified_at,
	file_exists, deleted_at, content_hash, crc32, notes`

func scanFile(row rowScanner) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(&f.ID, &f.DriveID, &f.DirectoryPath, &f.FileName, &f.Size, &f.Mode, &f.IsReadOnly, &f.BornAt,
		&f.ModifiedAt, &f.Exists, &f.DeletedAt, &f.ContentHash, &f.CRC32, &f.Notes)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStore) queryFiles(query string, args ...any) ([]*model.File, error) {
	rows, err := s.conn().QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) FindFiles(directoryPath, fileName string, driveID sql.NullInt64) ([]*model.File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE directory_path = ? AND file_name = ?"
	args := []any{directoryPath, fileName}
	if driveID.Valid {
		query += " AND drive_id = ?"
		args = append(args, driveID.Int64)
	}
	files, err := s.queryFiles(query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}
	return files, nil
}

func (s *SQLiteStore) FindFileByID(id int64) (*model.File, error) {
	f, err := scanFile(s.conn().QueryRowContext(context.Background(), "SELECT "+fileColumns+" FROM files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding file by id: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) FindFilesByName(fileName string) ([]*model.File, error) {
	files, err := s.queryFiles("SELECT "+fileColumns+" FROM files WHERE file_name = ? ORDER BY id", fileName)
	if err != nil {
		return nil, fmt.Errorf("finding files by name: %w", err)
	}
	return files, nil
}

func (s *SQLiteStore) ListFilesByDrive(driveID int64, afterID int64, limit int) ([]*model.File, error) {
	files, err := s.queryFiles("SELECT "+fileColumns+` FROM files
		WHERE drive_id = ? AND id > ? ORDER BY id LIMIT ?`, driveID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing files of drive %d: %w", driveID, err)
	}
	return files, nil
}

func (s *SQLiteStore) FilesMissingHash(driveID int64, after dcat.HashCursor, limit int) ([]*model.File, error) {
	files, err := s.queryFiles("SELECT "+fileColumns+` FROM files
		WHERE drive_id = ? AND file_exists = 1
		  AND (content_hash = '' OR crc32 IS NULL OR (crc32 = 0 AND size <> 0))
		  AND (size > ? OR (size = ? AND id > ?))
		ORDER BY size, id LIMIT ?`, driveID, after.Size, after.Size, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing files missing hashes: %w", err)
	}
	return files, nil
}

func (s *SQLiteStore) UpsertFile(f *model.File) error {
	if f == nil {
		return fmt.Errorf("%w: nil file", dcat.ErrInvalidArgument)
	}
	if f.ID == 0 {
		res, err := s.write(`INSERT INTO files (drive_id, directory_path, file_name, size, mode, is_read_only, born_at,
			modified_at, file_exists, deleted_at, content_hash, crc32, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.DriveID, f.DirectoryPath, f.FileName, f.Size, f.Mode, f.IsReadOnly, f.BornAt,
			f.ModifiedAt, f.Exists, f.DeletedAt, f.ContentHash, f.CRC32, f.Notes)
		if err != nil {
			return fmt.Errorf("inserting file: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading file id: %w", err)
		}
		f.ID = id
		return nil
	}

	_, err := s.write(`UPDATE files SET drive_id = ?, directory_path = ?, file_name = ?, size = ?, mode = ?,
		is_read_only = ?, born_at = ?, modified_at = ?, file_exists = ?, deleted_at = ?, content_hash = ?,
		crc32 = ?, notes = ? WHERE id = ?`,
		f.DriveID, f.DirectoryPath, f.FileName, f.Size, f.Mode, f.IsReadOnly, f.BornAt,
		f.ModifiedAt, f.Exists, f.DeletedAt, f.ContentHash, f.CRC32, f.Notes, f.ID)
	if err != nil {
		return fmt.Errorf("updating file %d: %w", f.ID, err)
	}
	return nil
}

// Duplicate operations

// UpsertDuplicate inserts a pair or updates it in place. Unknown verdicts
// and empty notes keep what is already recorded.
func (s *SQLiteStore) UpsertDuplicate(c *model.DuplicateCandidate) error {
	if c == nil {
		return fmt.Errorf("%w: nil duplicate pair", dcat.ErrInvalidArgument)
	}
	if err := c.Normalize(); err != nil {
		return err
	}
	_, err := s.write(`INSERT INTO file_duplicates (first_file_id, second_file_id, are_duplicates, first_is_backup,
			second_is_backup, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (first_file_id, second_file_id) DO UPDATE SET
			are_duplicates = COALESCE(excluded.are_duplicates, file_duplicates.are_duplicates),
			first_is_backup = COALESCE(excluded.first_is_backup, file_duplicates.first_is_backup),
			second_is_backup = COALESCE(excluded.second_is_backup, file_duplicates.second_is_backup),
			notes = COALESCE(NULLIF(excluded.notes, ''), file_duplicates.notes),
			updated_at = excluded.updated_at`,
		c.FirstID, c.SecondID, c.AreDuplicates, c.FirstIsBackup, c.SecondIsBackup, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving duplicate pair (%d, %d): %w", c.FirstID, c.SecondID, err)
	}
	return nil
}

func (s *SQLiteStore) FindDuplicates(fileID int64) ([]*model.DuplicateCandidate, error) {
	rows, err := s.conn().QueryContext(context.Background(), `SELECT first_file_id, second_file_id, are_duplicates,
			first_is_backup, second_is_backup, notes, created_at, updated_at
		FROM file_duplicates WHERE first_file_id = ? OR second_file_id = ?
		ORDER BY first_file_id, second_file_id`, fileID, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding duplicates of file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []*model.DuplicateCandidate
	for rows.Next() {
		c := &model.DuplicateCandidate{}
		if err := rows.Scan(&c.FirstID, &c.SecondID, &c.AreDuplicates, &c.FirstIsBackup, &c.SecondIsBackup,
			&c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reading duplicate pair: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Document operations

func (s *SQLiteStore) CreateDocument(doc *model.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document without id", dcat.ErrInvalidArgument)
	}
	_, err := s.write("INSERT INTO documents (id, notes, created_at, updated_at) VALUES (?, ?, ?, ?)",
		doc.ID, doc.Notes, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindDocument(id string) (*model.Document, error) {
	doc := &model.Document{}
	err := s.conn().QueryRowContext(context.Background(),
		"SELECT id, notes, created_at, updated_at FROM documents WHERE id = ?", id).
		Scan(&doc.ID, &doc.Notes, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}

	doc.Blobs, err = s.ListBlobs(id)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStore) UpsertBlob(b *model.DocumentBlob) error {
	if b == nil || b.DocumentID == "" {
		return fmt.Errorf("%w: blob without document", dcat.ErrInvalidArgument)
	}
	payload := b.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.write(`INSERT INTO document_blobs (document_id, blob_number, extension, mime_type, content_hash,
			crc32, length, framing, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, blob_number) DO UPDATE SET
			extension = excluded.extension,
			mime_type = excluded.mime_type,
			content_hash = excluded.content_hash,
			crc32 = excluded.crc32,
			length = excluded.length,
			framing = excluded.framing,
			payload = excluded.payload`,
		b.DocumentID, b.BlobNumber, b.Extension, b.MimeType, b.ContentHash,
		int64(b.CRC32), b.Length, b.Framing, payload, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving blob %s/%d: %w", b.DocumentID, b.BlobNumber, err)
	}
	_, err = s.write("UPDATE documents SET updated_at = ? WHERE id = ?", s.now().UTC(), b.DocumentID)
	if err != nil {
		return fmt.Errorf("touching document %s: %w", b.DocumentID, err)
	}
	return nil
}

const blobColumns = "document_id, blob_number, extension, mime_type, content_hash, crc32, length, framing, created_at"

func scanBlob(row rowScanner, extra ...any) (*model.DocumentBlob, error) {
	b := &model.DocumentBlob{}
	var crc int64
	dest := append([]any{&b.DocumentID, &b.BlobNumber, &b.Extension, &b.MimeType, &b.ContentHash,
		&crc, &b.Length, &b.Framing, &b.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.CRC32 = uint32(crc)
	return b, nil
}

func (s *SQLiteStore) FindBlob(documentID string, blobNumber int) (*model.DocumentBlob, error) {
	var payload []byte
	b, err := scanBlob(s.conn().QueryRowContext(context.Background(),
		"SELECT "+blobColumns+", payload FROM document_blobs WHERE document_id = ? AND blob_number = ?",
		documentID, blobNumber), &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding blob %s/%d: %w", documentID, blobNumber, err)
	}
	if payload == nil {
		payload = []byte{}
	}
	b.Payload = payload
	return b, nil
}

func (s *SQLiteStore) ListBlobs(documentID string) ([]*model.DocumentBlob, error) {
	rows, err := s.conn().QueryContext(context.Background(),
		"SELECT "+blobColumns+" FROM document_blobs WHERE document_id = ? ORDER BY blob_number", documentID)
	if err != nil {
		return nil, fmt.Errorf("listing blobs of %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []*model.DocumentBlob
	for rows.Next() {
		b, err := scanBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("reading blob: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Operation tracking

func (s *SQLiteStore) CreateOperation(operation, parameters string) (*model.Operation, error) {
	op := &model.Operation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.now().UTC(),
		Status:     "running",
	}
	// Outside a write transaction the row commits at once.
	res, err := s.conn().ExecContext(context.Background(),
		"INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, ?)",
		op.StartedAt, op.Operation, op.Parameters, op.Status)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteStore) FinishOperation(id int64, status string) error {
	_, err := s.conn().ExecContext(context.Background(),
		"UPDATE operations SET finished_at = ?, status = ? WHERE id = ?", s.now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.conn().QueryContext(context.Background(), `SELECT id, operation, parameters, started_at, finished_at, status
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var out []*model.Operation
	for rows.Next() {
		op := &model.Operation{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("reading operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MaxOperationID() (int64, error) {
	var id int64
	err := s.conn().QueryRowContext(context.Background(), "SELECT COALESCE(MAX(id), 0) FROM operations").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading max operation id: %w", err)
	}
	return id, nil
}

// Path returns the catalog file path, or ":memory:".
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the catalog schema is current.
func (s *SQLiteStore) CheckMigrations() error {
	if s.tx != nil {
		return fmt.Errorf("checking migrations: transaction in progress")
	}
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the catalog to destPath with
// VACUUM INTO. Pending writes must be committed first.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if s.tx != nil {
		return fmt.Errorf("backing up catalog: uncommitted changes")
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog: %w", err)
	}
	return nil
}

// Schema returns the CREATE statements of the catalog, tables first.
func (s *SQLiteStore) Schema() (string, error) {
	rows, err := s.conn().QueryContext(context.Background(), `SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name <> 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("reading schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}

// Close discards uncommitted writes and closes the connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.Rollback()
	return s.db.Close()
}

var _ dcat.Database = (*SQLiteStore)(nil)
