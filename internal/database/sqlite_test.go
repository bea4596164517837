package database

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dcat-go/internal/dcat"
	"dcat-go/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func mustCommit(t *testing.T, s *SQLiteStore) int64 {
	t.Helper()
	n, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return n
}

func insertDrive(t *testing.T, s *SQLiteStore, d *model.Drive) *model.Drive {
	t.Helper()
	saved, err := s.UpsertDrive(d)
	if err != nil {
		t.Fatalf("UpsertDrive() error = %v", err)
	}
	return saved
}

func insertFile(t *testing.T, s *SQLiteStore, driveID int64, dir, name string, size int64) *model.File {
	t.Helper()
	f := &model.File{
		DriveID:       sql.NullInt64{Int64: driveID, Valid: driveID != 0},
		DirectoryPath: dir,
		FileName:      name,
		Size:          size,
		ModifiedAt:    testTime,
		Exists:        true,
	}
	if err := s.UpsertFile(f); err != nil {
		t.Fatalf("UpsertFile() error = %v", err)
	}
	return f
}

func TestSQLiteStore_UpsertDrive(t *testing.T) {
	t.Run("insert assigns id and machines", func(t *testing.T) {
		s := newTestStore(t)

		d := insertDrive(t, s, &model.Drive{
			DriveType:          "Removable",
			DriveLetter:        "/media/usb",
			TotalSize:          64 << 30,
			DriveFormat:        "exfat",
			VolumeLabel:        "USB",
			VolumeSerialNumber: "1234-ABCD",
			MachineNames:       []string{"laptop"},
			CreatedAt:          testTime,
			UpdatedAt:          testTime,
		})
		mustCommit(t, s)

		if d.ID == 0 {
			t.Fatal("UpsertDrive() ID = 0, want assigned")
		}
		if !d.HasMachine("laptop") {
			t.Errorf("MachineNames = %v, want laptop", d.MachineNames)
		}
		if !d.CreatedAt.Equal(testTime) {
			t.Errorf("CreatedAt = %v, want %v", d.CreatedAt, testTime)
		}
	})

	t.Run("update unions machines", func(t *testing.T) {
		s := newTestStore(t)

		d := insertDrive(t, s, &model.Drive{DriveLetter: "/mnt/a", MachineNames: []string{"laptop"}})
		d.DriveLetter = "/mnt/b"
		d.MachineNames = []string{"desktop"}
		got := insertDrive(t, s, d)

		if got.DriveLetter != "/mnt/b" {
			t.Errorf("DriveLetter = %q, want /mnt/b", got.DriveLetter)
		}
		want := []string{"desktop", "laptop"}
		if strings.Join(got.MachineNames, ",") != strings.Join(want, ",") {
			t.Errorf("MachineNames = %v, want %v", got.MachineNames, want)
		}
	})

	t.Run("volume serial is unique when present", func(t *testing.T) {
		s := newTestStore(t)

		insertDrive(t, s, &model.Drive{VolumeSerialNumber: "AAAA"})
		insertDrive(t, s, &model.Drive{})
		insertDrive(t, s, &model.Drive{})
		if _, err := s.UpsertDrive(&model.Drive{VolumeSerialNumber: "AAAA"}); err == nil {
			t.Error("UpsertDrive() with duplicate serial error = nil, want error")
		}
	})
}

func TestSQLiteStore_FindDrives(t *testing.T) {
	s := newTestStore(t)

	a := insertDrive(t, s, &model.Drive{DriveFormat: "ext4", TotalSize: 100, DriveType: "Fixed", VolumeSerialNumber: "S1"})
	b := insertDrive(t, s, &model.Drive{DriveFormat: "ext4", TotalSize: 100, DriveType: "Fixed"})
	insertDrive(t, s, &model.Drive{DriveFormat: "ext4", TotalSize: 200, DriveType: "Fixed"})
	mustCommit(t, s)

	t.Run("by id", func(t *testing.T) {
		got, err := s.FindDriveByID(b.ID)
		if err != nil || got == nil || got.ID != b.ID {
			t.Errorf("FindDriveByID(%d) = %v, %v", b.ID, got, err)
		}
		missing, err := s.FindDriveByID(999)
		if err != nil || missing != nil {
			t.Errorf("FindDriveByID(999) = %v, %v, want nil, nil", missing, err)
		}
	})

	t.Run("by serial", func(t *testing.T) {
		got, err := s.FindDriveBySerial("S1")
		if err != nil || got == nil || got.ID != a.ID {
			t.Errorf("FindDriveBySerial(S1) = %v, %v", got, err)
		}
		blank, err := s.FindDriveBySerial("")
		if err != nil || blank != nil {
			t.Errorf("FindDriveBySerial(\"\") = %v, %v, want nil, nil", blank, err)
		}
	})

	t.Run("by geometry", func(t *testing.T) {
		got, err := s.FindDrivesByGeometry("ext4", 100, "Fixed")
		if err != nil {
			t.Fatalf("FindDrivesByGeometry() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
			t.Errorf("FindDrivesByGeometry() = %v, want drives %d and %d", got, a.ID, b.ID)
		}
	})

	t.Run("list", func(t *testing.T) {
		got, err := s.ListDrives()
		if err != nil {
			t.Fatalf("ListDrives() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("ListDrives() returned %d drives, want 3", len(got))
		}
	})
}

func TestSQLiteStore_Files(t *testing.T) {
	s := newTestStore(t)
	d1 := insertDrive(t, s, &model.Drive{VolumeSerialNumber: "D1"})
	d2 := insertDrive(t, s, &model.Drive{VolumeSerialNumber: "D2"})

	f1 := insertFile(t, s, d1.ID, "docs", "a.txt", 10)
	f2 := insertFile(t, s, d2.ID, "docs", "a.txt", 10)
	insertFile(t, s, d1.ID, "docs", "b.txt", 20)

	t.Run("reads see uncommitted writes", func(t *testing.T) {
		got, err := s.FindFileByID(f1.ID)
		if err != nil || got == nil {
			t.Fatalf("FindFileByID() = %v, %v", got, err)
		}
		if got.FileName != "a.txt" || !got.Exists {
			t.Errorf("FindFileByID() = %+v", got)
		}
	})

	if n := mustCommit(t, s); n == 0 {
		t.Errorf("Commit() = 0 rows, want > 0")
	}

	t.Run("find on one drive", func(t *testing.T) {
		got, err := s.FindFiles("docs", "a.txt", sql.NullInt64{Int64: d2.ID, Valid: true})
		if err != nil {
			t.Fatalf("FindFiles() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != f2.ID {
			t.Errorf("FindFiles() = %v, want file %d", got, f2.ID)
		}
	})

	t.Run("find on any drive", func(t *testing.T) {
		got, err := s.FindFiles("docs", "a.txt", sql.NullInt64{})
		if err != nil {
			t.Fatalf("FindFiles() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("FindFiles() returned %d files, want 2", len(got))
		}
	})

	t.Run("find by name", func(t *testing.T) {
		got, err := s.FindFilesByName("b.txt")
		if err != nil || len(got) != 1 {
			t.Errorf("FindFilesByName() = %v, %v", got, err)
		}
	})

	t.Run("update round trips every field", func(t *testing.T) {
		f, _ := s.FindFileByID(f1.ID)
		f.ContentHash = "hash"
		f.SetCRC32(0xCBF43926)
		f.Mode = 0o644
		f.IsReadOnly = true
		f.BornAt = sql.NullTime{Time: testTime.Add(-time.Hour), Valid: true}
		f.MarkMissing(testTime)
		if err := s.UpsertFile(f); err != nil {
			t.Fatalf("UpsertFile() error = %v", err)
		}
		mustCommit(t, s)

		got, _ := s.FindFileByID(f1.ID)
		if got.ContentHash != "hash" || got.CRC32.Int64 != 0xCBF43926 || got.Mode != 0o644 || !got.IsReadOnly {
			t.Errorf("FindFileByID() = %+v", got)
		}
		if got.Exists || !got.DeletedAt.Valid || !got.DeletedAt.Time.Equal(testTime) {
			t.Errorf("Exists = %v, DeletedAt = %v, want soft-deleted at %v", got.Exists, got.DeletedAt, testTime)
		}
		if !got.BornAt.Valid || !got.BornAt.Time.Equal(testTime.Add(-time.Hour)) {
			t.Errorf("BornAt = %v", got.BornAt)
		}
	})

	t.Run("list by drive pages in id order", func(t *testing.T) {
		page, err := s.ListFilesByDrive(d1.ID, 0, 1)
		if err != nil || len(page) != 1 {
			t.Fatalf("ListFilesByDrive() = %v, %v", page, err)
		}
		next, err := s.ListFilesByDrive(d1.ID, page[0].ID, 10)
		if err != nil || len(next) != 1 || next[0].ID <= page[0].ID {
			t.Errorf("ListFilesByDrive(after %d) = %v, %v", page[0].ID, next, err)
		}
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		insertFile(t, s, d1.ID, "tmp", "gone.txt", 1)
		if err := s.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		got, _ := s.FindFiles("tmp", "gone.txt", sql.NullInt64{})
		if len(got) != 0 {
			t.Errorf("FindFiles() after rollback = %v, want none", got)
		}
	})
}

func TestSQLiteStore_FilesMissingHash(t *testing.T) {
	s := newTestStore(t)
	d := insertDrive(t, s, &model.Drive{})

	big := insertFile(t, s, d.ID, ".", "big", 300)
	small := insertFile(t, s, d.ID, ".", "small", 100)
	tie := insertFile(t, s, d.ID, ".", "tie", 100)
	empty := insertFile(t, s, d.ID, ".", "empty", 0)

	hashed := insertFile(t, s, d.ID, ".", "hashed", 50)
	hashed.ContentHash = "x"
	hashed.SetCRC32(7)
	s.UpsertFile(hashed)

	zeroCRC := insertFile(t, s, d.ID, ".", "zero-crc", 60)
	zeroCRC.ContentHash = "x"
	zeroCRC.SetCRC32(0)
	s.UpsertFile(zeroCRC)

	gone := insertFile(t, s, d.ID, ".", "gone", 70)
	gone.MarkMissing(testTime)
	s.UpsertFile(gone)
	mustCommit(t, s)

	ids := func(files []*model.File) []int64 {
		var out []int64
		for _, f := range files {
			out = append(out, f.ID)
		}
		return out
	}

	first, err := s.FilesMissingHash(d.ID, dcat.HashCursor{}, 3)
	if err != nil {
		t.Fatalf("FilesMissingHash() error = %v", err)
	}
	want := []int64{empty.ID, zeroCRC.ID, small.ID}
	if got := ids(first); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("FilesMissingHash() = %v, want %v", got, want)
	}

	last := first[len(first)-1]
	rest, err := s.FilesMissingHash(d.ID, dcat.HashCursor{Size: last.Size, ID: last.ID}, 10)
	if err != nil {
		t.Fatalf("FilesMissingHash() error = %v", err)
	}
	want = []int64{tie.ID, big.ID}
	if got := ids(rest); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("FilesMissingHash(after) = %v, want %v", got, want)
	}
}

func TestSQLiteStore_Duplicates(t *testing.T) {
	s := newTestStore(t)
	a := insertFile(t, s, 0, "/x", "a", 1)
	b := insertFile(t, s, 0, "/x", "b", 1)

	c := &model.DuplicateCandidate{
		FirstID:       b.ID,
		SecondID:      a.ID,
		FirstIsBackup: sql.NullBool{Bool: true, Valid: true},
		Notes:         "first pass",
	}
	if err := s.UpsertDuplicate(c); err != nil {
		t.Fatalf("UpsertDuplicate() error = %v", err)
	}

	c2 := &model.DuplicateCandidate{
		FirstID:       a.ID,
		SecondID:      b.ID,
		AreDuplicates: sql.NullBool{Bool: true, Valid: true},
		Notes:         "confirmed",
	}
	if err := s.UpsertDuplicate(c2); err != nil {
		t.Fatalf("UpsertDuplicate() second error = %v", err)
	}
	mustCommit(t, s)

	got, err := s.FindDuplicates(b.ID)
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("FindDuplicates() returned %d pairs, want 1", len(got))
	}
	if got[0].FirstID != a.ID || got[0].SecondID != b.ID {
		t.Errorf("pair = (%d, %d), want (%d, %d)", got[0].FirstID, got[0].SecondID, a.ID, b.ID)
	}
	if got[0].Notes != "confirmed" || !got[0].AreDuplicates.Bool {
		t.Errorf("pair = %+v, want updated notes and verdict", got[0])
	}
	if got[0].FirstIsBackup.Valid || !got[0].SecondIsBackup.Valid || !got[0].SecondIsBackup.Bool {
		t.Errorf("backup flags = %v %v, want second still marked backup", got[0].FirstIsBackup, got[0].SecondIsBackup)
	}

	if err := s.UpsertDuplicate(&model.DuplicateCandidate{FirstID: a.ID, SecondID: b.ID}); err != nil {
		t.Fatalf("UpsertDuplicate() third error = %v", err)
	}
	mustCommit(t, s)
	got, err = s.FindDuplicates(a.ID)
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(got) != 1 || got[0].Notes != "confirmed" || !got[0].AreDuplicates.Valid {
		t.Errorf("pair = %+v, want notes and verdict kept", got)
	}

	if err := s.UpsertDuplicate(&model.DuplicateCandidate{FirstID: a.ID, SecondID: a.ID}); err == nil {
		t.Error("UpsertDuplicate() self pair error = nil, want error")
	}
}

func TestSQLiteStore_Documents(t *testing.T) {
	s := newTestStore(t)

	doc := &model.Document{ID: "doc-1", Notes: "scan", CreatedAt: testTime, UpdatedAt: testTime}
	if err := s.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	payload := []byte{0x78, 0x9C, 1, 2, 3}
	blob := &model.DocumentBlob{
		DocumentID:  "doc-1",
		BlobNumber:  1,
		Extension:   "pdf",
		MimeType:    "application/pdf",
		ContentHash: "digest",
		CRC32:       0xFFFFFFFF,
		Length:      4096,
		Framing:     "zlib",
		Payload:     payload,
		CreatedAt:   testTime,
	}
	if err := s.UpsertBlob(blob); err != nil {
		t.Fatalf("UpsertBlob() error = %v", err)
	}
	mustCommit(t, s)

	got, err := s.FindBlob("doc-1", 1)
	if err != nil || got == nil {
		t.Fatalf("FindBlob() = %v, %v", got, err)
	}
	if got.CRC32 != 0xFFFFFFFF {
		t.Errorf("CRC32 = %08X, want FFFFFFFF", got.CRC32)
	}
	if !bytes.Equal(got.Payload, payload) || got.Length != 4096 || got.Framing != "zlib" {
		t.Errorf("FindBlob() = %+v", got)
	}

	found, err := s.FindDocument("doc-1")
	if err != nil || found == nil {
		t.Fatalf("FindDocument() = %v, %v", found, err)
	}
	if len(found.Blobs) != 1 || found.Blobs[0].Payload != nil {
		t.Errorf("FindDocument() blobs = %+v, want one blob without payload", found.Blobs)
	}

	missing, err := s.FindBlob("doc-1", 2)
	if err != nil || missing != nil {
		t.Errorf("FindBlob(missing) = %v, %v, want nil, nil", missing, err)
	}
	if err := s.UpsertBlob(&model.DocumentBlob{DocumentID: "nope", BlobNumber: 1, CreatedAt: testTime}); err == nil {
		t.Error("UpsertBlob() for unknown document error = nil, want error")
	}
}

func TestSQLiteStore_Operations(t *testing.T) {
	s := newTestStore(t)

	maxID, err := s.MaxOperationID()
	if err != nil || maxID != 0 {
		t.Fatalf("MaxOperationID() = %d, %v, want 0", maxID, err)
	}

	op1, err := s.CreateOperation("scan", "/data")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	op2, _ := s.CreateOperation("hash", "1")
	if err := s.FinishOperation(op1.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	ops, err := s.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 || ops[0].ID != op2.ID {
		t.Fatalf("ListOperations() = %v, want newest first", ops)
	}
	if ops[1].Status != "success" || !ops[1].FinishedAt.Valid {
		t.Errorf("finished operation = %+v", ops[1])
	}
	if ops[0].Status != "running" {
		t.Errorf("Status = %q, want running", ops[0].Status)
	}

	if maxID, _ = s.MaxOperationID(); maxID != op2.ID {
		t.Errorf("MaxOperationID() = %d, want %d", maxID, op2.ID)
	}
}

func TestSQLiteStore_BackupTo(t *testing.T) {
	s := newTestStore(t)
	insertDrive(t, s, &model.Drive{VolumeSerialNumber: "KEEP"})

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := s.BackupTo(dest); err == nil {
		t.Error("BackupTo() with pending writes error = nil, want error")
	}
	mustCommit(t, s)

	if err := s.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	backup, err := NewSQLiteStore(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backup.Close()

	d, err := backup.FindDriveBySerial("KEEP")
	if err != nil || d == nil {
		t.Errorf("backup FindDriveBySerial() = %v, %v, want drive", d, err)
	}
}

func TestSQLiteStore_Schema(t *testing.T) {
	s := newTestStore(t)

	schema, err := s.Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	for _, want := range []string{"CREATE TABLE drives", "CREATE TABLE document_blobs", "idx_drives_volume_serial"} {
		if !strings.Contains(schema, want) {
			t.Errorf("Schema() missing %q", want)
		}
	}
	if strings.Contains(schema, "schema_migrations") {
		t.Error("Schema() includes the migration bookkeeping table")
	}
}

func TestSQLiteStore_CheckMigrations(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() = %v, want nil", err)
	}
}
