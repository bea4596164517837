package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dcat-go/internal/checksum"
	"dcat-go/internal/config"
	"dcat-go/internal/database"
	"dcat-go/internal/dcat"
	"dcat-go/internal/digest"
	"dcat-go/internal/encryption"
	"dcat-go/internal/framing"
	"dcat-go/internal/fs"
	"dcat-go/internal/model"
	"dcat-go/internal/vault"
)

// ErrCatalogBehind is returned when the vault holds a newer snapshot of
// this machine's catalog than the local one.
var ErrCatalogBehind = errors.New("local catalog is behind the vault")

// DcatApp is the application layer between the CLI and CatalogService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI arguments, and snapshots the catalog on Close.
type DcatApp struct {
	cfg       *config.Config
	db        dcat.Database
	vault     dcat.Vault
	encryptor dcat.Encryptor
	fsmgr     dcat.FilesystemManager
	service   *dcat.CatalogService
	op        *Operation
	logger    *slogAdapter
	logFile   *os.File
}

// Console receives log output besides the log file. The CLI leaves it at
// stderr; tests silence it.
var Console io.Writer = os.Stderr

// NewDcatApp creates a fully wired DcatApp from cfg. op describes the CLI
// command being run. The caller must call Close when done.
func NewDcatApp(cfg *config.Config, op *Operation) (*DcatApp, error) {
	opts, err := serviceOptions(cfg)
	if err != nil {
		return nil, err
	}

	v, err := firstVault(cfg)
	if err != nil {
		return nil, err
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.MachineName)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog schema out of date: %w", err)
	}

	remote, err := v.SnapshotVersion(cfg.MachineName, SnapshotName)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking vault snapshot version: %w", err)
	}
	local, err := db.MaxOperationID()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking local catalog version: %w", err)
	}
	if remote > local {
		db.Close()
		return nil, fmt.Errorf("%w (local=%d, vault=%d): run 'dcat snapshot restore'", ErrCatalogBehind, local, remote)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, cfg.LogLevel, Console)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore, cfg.Filesystem.SkipHidden)
	svc := dcat.NewCatalogService(db, fsmgr, fs.NewVolumeProber(), adapter, dcat.RealClock{}, dcat.UUIDGenerator{}, opts)

	if op == nil {
		op = NewOperation("unknown")
	}
	return &DcatApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		fsmgr:     fsmgr,
		service:   svc,
		op:        op,
		logger:    adapter,
		logFile:   logFile,
	}, nil
}

func firstVault(cfg *config.Config) (dcat.Vault, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	return v, nil
}

// serviceOptions translates the hashing and blob sections of cfg.
func serviceOptions(cfg *config.Config) (dcat.Options, error) {
	dig, err := digest.New(digest.Algorithm(cfg.Hashing.Digest), digest.Encoding(cfg.Hashing.Encoding))
	if err != nil {
		return dcat.Options{}, fmt.Errorf("configuring digest: %w", err)
	}

	policy := framing.DefaultPolicy()
	if cfg.Blobs.Framing != "" {
		if policy.Kind, err = framing.ParseKind(cfg.Blobs.Framing); err != nil {
			return dcat.Options{}, fmt.Errorf("configuring blobs: %w", err)
		}
	}
	if cfg.Blobs.Level != "" {
		if policy.Level, err = framing.ParseLevel(cfg.Blobs.Level); err != nil {
			return dcat.Options{}, fmt.Errorf("configuring blobs: %w", err)
		}
	}
	if cfg.Blobs.MinCompressSize > 0 {
		policy.MinSize = cfg.Blobs.MinCompressSize
	}

	return dcat.Options{
		MachineName: cfg.MachineName,
		BatchSize:   cfg.Hashing.BatchSize,
		MaxRows:     cfg.Hashing.MaxRows,
		Checksum:    checksum.New(cfg.Hashing.BufferSize),
		Digest:      dig,
		Blobs:       policy,
	}, nil
}

// persistOperation gives the operation a catalog row on first mutation.
func (a *DcatApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	row, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = row.ID
	return nil
}

// mutate runs fn as part of the tracked operation, marking it failed when
// fn fails.
func (a *DcatApp) mutate(fn func() error) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

// Operation returns the operation this app tracks.
func (a *DcatApp) Operation() *Operation {
	return a.op
}

// RefreshDrives re-probes every mounted volume.
func (a *DcatApp) RefreshDrives() ([]*dcat.Resolution, error) {
	var out []*dcat.Resolution
	err := a.mutate(func() error {
		var err error
		out, err = a.service.RefreshDrives()
		return err
	})
	return out, err
}

// ListDrives returns catalogued drives matching filter.
func (a *DcatApp) ListDrives(filter dcat.DriveFilter) ([]*model.Drive, error) {
	return a.service.FindDrives(filter)
}

// Scan indexes each path in turn and sums the results. It stops at the
// first failing path.
func (a *DcatApp) Scan(ctx context.Context, paths []string, opts dcat.ScanOptions) (*dcat.ScanResult, error) {
	total := &dcat.ScanResult{}
	err := a.mutate(func() error {
		for _, p := range paths {
			res, err := a.service.Scan(ctx, p, opts)
			if res != nil {
				total.Added += res.Added
				total.Updated += res.Updated
				total.Hashed += res.Hashed
				total.Skipped += res.Skipped
			}
			if err != nil {
				return fmt.Errorf("scanning %s: %w", p, err)
			}
		}
		return nil
	})
	return total, err
}

// DriveSweep is the hash sweep outcome for one drive.
type DriveSweep struct {
	Drive  *model.Drive
	Result *dcat.SweepResult
	Err    error
}

// HashDrives sweeps one drive, or with driveID 0 every drive of this
// machine that is mounted where the catalog last saw it.
func (a *DcatApp) HashDrives(ctx context.Context, driveID int64, opts dcat.HashOptions) ([]*DriveSweep, error) {
	var out []*DriveSweep
	err := a.mutate(func() error {
		if driveID != 0 {
			res, err := a.service.HashFilesForDrive(ctx, driveID, opts)
			if err != nil {
				return err
			}
			out = append(out, &DriveSweep{Drive: &model.Drive{ID: driveID}, Result: res})
			return nil
		}

		drives, err := a.service.FindDrives(dcat.DriveFilter{Machine: a.service.MachineName()})
		if err != nil {
			return err
		}
		for _, d := range drives {
			res, err := a.service.HashFilesForDrive(ctx, d.ID, opts)
			switch {
			case errors.Is(err, dcat.ErrNotMounted):
				a.logger.Debug("drive not mounted, skipping", "id", d.ID, "mount", d.DriveLetter)
				continue
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				out = append(out, &DriveSweep{Drive: d, Result: res, Err: err})
				return err
			}
			out = append(out, &DriveSweep{Drive: d, Result: res, Err: err})
		}
		return nil
	})
	return out, err
}

// Verify checks that the files of a drive still exist.
func (a *DcatApp) Verify(ctx context.Context, driveID int64, computeHash bool) (*dcat.VerifyResult, error) {
	var out *dcat.VerifyResult
	err := a.mutate(func() error {
		var err error
		out, err = a.service.VerifyFilesExist(ctx, driveID, computeHash)
		return err
	})
	return out, err
}

// Delete soft-deletes the catalog rows for a path.
func (a *DcatApp) Delete(rawPath string, removeFromDisk bool) (int, error) {
	var n int
	err := a.mutate(func() error {
		var err error
		n, err = a.service.DeleteFiles(rawPath, removeFromDisk)
		return err
	})
	return n, err
}

// RecordDuplicate stores a duplicate candidate pair.
func (a *DcatApp) RecordDuplicate(in dcat.DuplicateInput) (*model.DuplicateCandidate, error) {
	var out *model.DuplicateCandidate
	err := a.mutate(func() error {
		var err error
		out, err = a.service.RecordDuplicate(in)
		return err
	})
	return out, err
}

// ListDuplicates returns the pairs a file belongs to.
func (a *DcatApp) ListDuplicates(fileID int64) ([]*model.DuplicateCandidate, error) {
	return a.service.ListDuplicates(fileID)
}

// AddDocument stores a file as a new document.
func (a *DcatApp) AddDocument(rawPath, notes string) (*model.Document, error) {
	var out *model.Document
	err := a.mutate(func() error {
		var err error
		out, err = a.service.AddDocument(rawPath, notes)
		return err
	})
	return out, err
}

// AddBlob appends a file to a document.
func (a *DcatApp) AddBlob(documentID, rawPath string) (*model.DocumentBlob, error) {
	var out *model.DocumentBlob
	err := a.mutate(func() error {
		var err error
		out, err = a.service.AddBlob(documentID, rawPath)
		return err
	})
	return out, err
}

// GetDocument returns a document and its blob metadata.
func (a *DcatApp) GetDocument(id string) (*model.Document, error) {
	return a.service.GetDocument(id)
}

// ReadBlob returns the verified bytes of a blob.
func (a *DcatApp) ReadBlob(documentID string, number int) ([]byte, *model.DocumentBlob, error) {
	return a.service.ReadBlob(documentID, number)
}

// FindFiles returns catalogued files with the given name.
func (a *DcatApp) FindFiles(name string) ([]*model.File, error) {
	return a.service.FindFilesByName(name)
}

// GetHistory returns the most recent operations.
func (a *DcatApp) GetHistory(limit int) ([]*model.Operation, error) {
	return a.service.GetHistory(limit)
}

// Schema returns the catalog's CREATE statements.
func (a *DcatApp) Schema() (string, error) {
	return a.db.Schema()
}

// Close finalizes the operation and closes all resources. A persisted
// operation is finished, then the catalog is snapshotted and uploaded to
// the vault with the operation ID as version.
func (a *DcatApp) Close() error {
	var errs []error

	if a.op.Persisted() {
		if err := a.db.Rollback(); err != nil {
			errs = append(errs, err)
		}
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}

		snapshot, err := a.snapshot()
		if err != nil {
			errs = append(errs, err)
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing catalog: %w", err))
		}
		if snapshot != "" {
			if err := uploadSnapshot(a.vault, a.encryptor, a.cfg.MachineName, snapshot, a.op.ID); err != nil {
				errs = append(errs, err)
			} else {
				a.logger.Info("snapshot uploaded", "version", a.op.ID)
			}
			os.Remove(snapshot)
		}
	} else if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing catalog: %w", err))
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// snapshot copies the catalog to a temp file and returns its path.
func (a *DcatApp) snapshot() (string, error) {
	tmp, err := os.CreateTemp("", "dcat-snapshot-*.db")
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	if err := a.db.BackupTo(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("snapshotting catalog: %w", err)
	}
	return path, nil
}
