package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dcat-go/internal/config"
	"dcat-go/internal/database"
	"dcat-go/internal/dcat"
	"dcat-go/internal/encryption"
)

// SnapshotName is the vault name of a machine's catalog snapshot.
const SnapshotName = "catalog.db"

// uploadSnapshot seals the catalog copy at path when the encryptor is
// enabled and stores it in the vault as version.
func uploadSnapshot(v dcat.Vault, enc dcat.Encryptor, machine, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	if enc.Enabled() {
		var sealed bytes.Buffer
		if err := enc.Seal(f, &sealed); err != nil {
			return fmt.Errorf("sealing snapshot: %w", err)
		}
		if err := v.PutSnapshot(machine, SnapshotName, &sealed, int64(sealed.Len()), version); err != nil {
			return fmt.Errorf("uploading snapshot to vault: %w", err)
		}
		return nil
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	if err := v.PutSnapshot(machine, SnapshotName, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}

// RestoreSnapshot replaces the local catalog with the vault's snapshot for
// this machine and returns the restored version. An existing catalog is
// kept next to it with a .bak suffix.
func RestoreSnapshot(cfg *config.Config, passphrase string) (int64, error) {
	if cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("restore requires a sqlite database, got %q", cfg.Database.Type)
	}

	v, err := firstVault(cfg)
	if err != nil {
		return 0, err
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}

	version, err := v.SnapshotVersion(cfg.MachineName, SnapshotName)
	if err != nil {
		return 0, fmt.Errorf("checking vault snapshot version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("restoring %s: %w", cfg.MachineName, dcat.ErrSnapshotNotFound)
	}

	var stored bytes.Buffer
	if err := v.GetSnapshot(cfg.MachineName, SnapshotName, &stored); err != nil {
		return 0, fmt.Errorf("downloading snapshot: %w", err)
	}

	if err := os.MkdirAll(cfg.Database.DataDir, 0o700); err != nil {
		return 0, fmt.Errorf("creating data dir: %w", err)
	}
	dest := database.CatalogPath(cfg.Database, cfg.MachineName)
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".restore-*.db")
	if err != nil {
		return 0, fmt.Errorf("creating restore file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if enc.Enabled() {
		opener, err := enc.Unlock(passphrase)
		if err != nil {
			tmp.Close()
			return 0, fmt.Errorf("unlocking snapshot key: %w", err)
		}
		err = opener.Open(&stored, tmp)
		if err != nil {
			tmp.Close()
			return 0, fmt.Errorf("opening sealed snapshot: %w", err)
		}
	} else if _, err := stored.WriteTo(tmp); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing restore file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("writing restore file: %w", err)
	}

	if err := checkRestored(tmpPath, version); err != nil {
		return 0, err
	}

	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, dest+".bak"); err != nil {
			return 0, fmt.Errorf("keeping previous catalog: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("stat catalog: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("installing restored catalog: %w", err)
	}
	return version, nil
}

// checkRestored opens a downloaded catalog and makes sure its newest
// operation is the version the vault reported.
func checkRestored(path string, version int64) error {
	store, err := database.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("restored catalog unreadable: %w", err)
	}
	defer store.Close()

	got, err := store.MaxOperationID()
	if err != nil {
		return fmt.Errorf("restored catalog unreadable: %w", err)
	}
	if got != version {
		return fmt.Errorf("restored catalog is at operation %d, vault says %d", got, version)
	}
	return nil
}

// SetupEncryption generates the snapshot key pair.
func SetupEncryption(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.Enabled() {
		return fmt.Errorf("encryption is disabled in config")
	}
	return enc.Setup(passphrase)
}

// CheckVault validates the first configured vault.
func CheckVault(cfg *config.Config) error {
	v, err := firstVault(cfg)
	if err != nil {
		return err
	}
	if err := v.ValidateSetup(); err != nil {
		return fmt.Errorf("vault %s: %w", cfg.Vaults[0].Name, err)
	}
	return nil
}
