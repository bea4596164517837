package dcat

import (
	"errors"

	"dcat-go/internal/checksum"
	"dcat-go/internal/digest"
	"dcat-go/internal/framing"
	"dcat-go/internal/model"
)

var (
	// ErrInvalidArgument reports a missing or empty required input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a drive, file or document that is not catalogued.
	ErrNotFound = errors.New("not found")

	// ErrNotMounted reports a drive that is not currently mounted where
	// the catalog last saw it.
	ErrNotMounted = errors.New("drive not mounted")

	// ErrNotAttached reports a drive never attached to this machine.
	ErrNotAttached = errors.New("drive not attached to this machine")
)

const (
	DefaultBatchSize = 50
	DefaultMaxRows   = 32767
)

// Options tunes a CatalogService. Zero values select the defaults.
type Options struct {
	MachineName string
	BatchSize   int
	MaxRows     int
	Checksum    *checksum.Engine
	Digest      *digest.Engine
	Blobs       framing.Policy
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.Checksum == nil {
		o.Checksum = checksum.New(0)
	}
	if o.Digest == nil {
		o.Digest, _ = digest.New(digest.SHA1, digest.Base64)
	}
	if o.Blobs == (framing.Policy{}) {
		o.Blobs = framing.DefaultPolicy()
	}
	return o
}

// CatalogService indexes files and documents into the catalog. It is not
// safe for concurrent use; the catalog store belongs to one caller at a
// time.
type CatalogService struct {
	store   Store
	fsmgr   FilesystemManager
	volumes VolumeProber
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	opts    Options

	// drives caches resolved drives by mount point.
	drives map[string]*model.Drive
}

// NewCatalogService wires a service. The store must already be migrated.
func NewCatalogService(store Store, fsmgr FilesystemManager, volumes VolumeProber, logger Logger, clock Clock, idgen IDGenerator, opts Options) *CatalogService {
	return &CatalogService{
		store:   store,
		fsmgr:   fsmgr,
		volumes: volumes,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		opts:    opts.withDefaults(),
		drives:  make(map[string]*model.Drive),
	}
}

// MachineName is the name this service records drives against.
func (s *CatalogService) MachineName() string {
	return s.opts.MachineName
}

// commit ends the current transaction and logs what it wrote.
func (s *CatalogService) commit(stage string) (int64, error) {
	n, err := s.store.Commit()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("committed", "stage", stage, "rows", n)
	}
	return n, nil
}

// GetHistory returns the most recent persisted operations, newest first.
func (s *CatalogService) GetHistory(limit int) ([]*model.Operation, error) {
	return s.store.ListOperations(limit)
}
