package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"dcat-go/internal/app"
	"dcat-go/internal/config"
	"dcat-go/internal/dcat"
	"dcat-go/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a DcatApp. The caller must defer
// a.Close(). operation and args name the command in the history.
func newApp(operation string, args ...string) (*app.DcatApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewDcatApp(cfg, app.NewOperation(operation, args...))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp folds Close errors into the command's error.
func closeApp(a *app.DcatApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseTristate maps yes/no/"" onto a nullable bool.
func parseTristate(s string) (sql.NullBool, error) {
	switch strings.ToLower(s) {
	case "":
		return sql.NullBool{}, nil
	case "yes", "true":
		return sql.NullBool{Bool: true, Valid: true}, nil
	case "no", "false":
		return sql.NullBool{Valid: true}, nil
	default:
		return sql.NullBool{}, fmt.Errorf("want yes or no, got %q", s)
	}
}

func tristate(b sql.NullBool) string {
	switch {
	case !b.Valid:
		return "?"
	case b.Bool:
		return "yes"
	default:
		return "no"
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printDrive(d *model.Drive) {
	fmt.Printf("#%d  %-20s  %-10s  %-8s  %10s  %-16s  %s\n",
		d.ID,
		d.DriveLetter,
		d.DriveType,
		d.DriveFormat,
		formatSize(d.TotalSize),
		d.VolumeSerialNumber,
		d.VolumeLabel,
	)
}

var rootCmd = &cobra.Command{
	Use:          "dcat",
	Short:        "Catalog files across drives",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		machine := app.DefaultMachineName(uuid.NewString)
		cfg := config.NewConfig(machine, defaults["base_dir"])
		if encrypt {
			cfg.Encryption.Type = "age"
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Machine:  %s\n", machine)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])

		if !encrypt {
			return nil
		}
		pass, err := readPassphrase("Snapshot passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}
		if err := app.SetupEncryption(cfg, pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Printf("Snapshot keys written to %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Machine:    %s\n", cfg.MachineName)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Digest:     %s/%s\n", cfg.Hashing.Digest, cfg.Hashing.Encoding)
		fmt.Printf("Blobs:      %s, level %s, from %d bytes\n", cfg.Blobs.Framing, cfg.Blobs.Level, cfg.Blobs.MinCompressSize)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the vault is reachable and writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.CheckVault(cfg); err != nil {
			return err
		}
		fmt.Println("Vault OK")
		return nil
	},
}

// drives command
var drivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "Manage catalogued drives",
}

var drivesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued drives",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var filter dcat.DriveFilter
		filter.Machine, _ = cmd.Flags().GetString("machine")
		filter.Label, _ = cmd.Flags().GetString("label")
		filter.Serial, _ = cmd.Flags().GetString("serial")

		a, err := newApp("drives list")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		drives, err := a.ListDrives(filter)
		if err != nil {
			return err
		}
		if len(drives) == 0 {
			fmt.Println("No drives catalogued.")
			return nil
		}
		for _, d := range drives {
			printDrive(d)
		}
		return nil
	},
}

var drivesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Probe mounted volumes and update the catalog",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("drives refresh")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.RefreshDrives()
		if err != nil {
			return err
		}
		for _, r := range res {
			switch {
			case r.Created:
				fmt.Print("new      ")
			case r.PreviousMount != "" && r.PreviousMount != r.Drive.DriveLetter:
				fmt.Printf("moved    (was %s, matched by %s) ", r.PreviousMount, r.Rule)
			default:
				fmt.Printf("%-8s ", r.Rule)
			}
			printDrive(r.Drive)
		}
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan PATH...",
	Short: "Index files into the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		recursive, _ := cmd.Flags().GetBool("recursive")
		hash, _ := cmd.Flags().GetBool("hash")

		a, err := newApp("scan", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Scan(cmd.Context(), args, dcat.ScanOptions{Recursive: recursive, ComputeHash: hash})
		fmt.Printf("Added %d, updated %d, hashed %d, skipped %d\n", res.Added, res.Updated, res.Hashed, res.Skipped)
		return err
	},
}

// hash command
var hashCmd = &cobra.Command{
	Use:   "hash [DRIVE_ID]",
	Short: "Compute missing digests for a drive, or all mounted drives",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var opts dcat.HashOptions
		opts.BatchSize, _ = cmd.Flags().GetInt("batch")
		opts.MaxRows, _ = cmd.Flags().GetInt("max")

		var id int64
		if len(args) == 1 {
			if id, err = parseID(args[0]); err != nil {
				return err
			}
		}

		a, err := newApp("hash", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		sweeps, err := a.HashDrives(cmd.Context(), id, opts)
		for _, s := range sweeps {
			if s.Err != nil {
				fmt.Printf("#%d  %v\n", s.Drive.ID, s.Err)
				continue
			}
			fmt.Printf("#%d  hashed %d, skipped %d\n", s.Drive.ID, s.Result.Hashed, s.Result.Skipped)
		}
		if err == nil && len(sweeps) == 0 {
			fmt.Println("No mounted drives to hash.")
		}
		return err
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify DRIVE_ID",
	Short: "Check that catalogued files still exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		hash, _ := cmd.Flags().GetBool("hash")
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("verify", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Verify(cmd.Context(), id, hash)
		if res != nil {
			fmt.Printf("Checked %d, missing %d, restored %d, hashed %d, skipped %d\n",
				res.Checked, res.Missing, res.Restored, res.Hashed, res.Skipped)
		}
		return err
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete PATH",
	Short: "Mark files deleted in the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		remove, _ := cmd.Flags().GetBool("remove")

		a, err := newApp("delete", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		n, err := a.Delete(args[0], remove)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d file(s)\n", n)
		return nil
	},
}

// dup command
var dupCmd = &cobra.Command{
	Use:   "dup",
	Short: "Manage duplicate candidates",
}

var dupAddCmd = &cobra.Command{
	Use:   "add FILE_ID FILE_ID",
	Short: "Record a pair of files as duplicate candidates",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var in dcat.DuplicateInput
		if in.FirstID, err = parseID(args[0]); err != nil {
			return err
		}
		if in.SecondID, err = parseID(args[1]); err != nil {
			return err
		}
		for flag, dst := range map[string]*sql.NullBool{
			"duplicate":     &in.AreDuplicates,
			"first-backup":  &in.FirstIsBackup,
			"second-backup": &in.SecondIsBackup,
		} {
			v, _ := cmd.Flags().GetString(flag)
			if *dst, err = parseTristate(v); err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
		}
		in.Notes, _ = cmd.Flags().GetString("notes")

		a, err := newApp("dup add", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		c, err := a.RecordDuplicate(in)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %d <-> %d\n", c.FirstID, c.SecondID)
		return nil
	},
}

var dupListCmd = &cobra.Command{
	Use:   "list FILE_ID",
	Short: "List the duplicate candidates of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("dup list", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		pairs, err := a.ListDuplicates(id)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			fmt.Println("No duplicate candidates.")
			return nil
		}
		for _, c := range pairs {
			fmt.Printf("%d <-> %d  duplicate:%s  backups:%s/%s  %s\n",
				c.FirstID, c.SecondID,
				tristate(c.AreDuplicates),
				tristate(c.FirstIsBackup), tristate(c.SecondIsBackup),
				c.Notes,
			)
		}
		return nil
	},
}

// doc command
var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Store and retrieve documents",
}

var docAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Store a file as a new document, or as a blob of --to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		notes, _ := cmd.Flags().GetString("notes")
		to, _ := cmd.Flags().GetString("to")

		a, err := newApp("doc add", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if to != "" {
			blob, err := a.AddBlob(to, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Added blob %d to %s (%s, %s)\n", blob.BlobNumber, to, formatSize(blob.Length), blob.Framing)
			return nil
		}

		doc, err := a.AddDocument(args[0], notes)
		if err != nil {
			return err
		}
		fmt.Printf("Document %s\n", doc.ID)
		return nil
	},
}

var docGetCmd = &cobra.Command{
	Use:   "get DOCUMENT_ID [BLOB]",
	Short: "Show a document, or write one of its blobs to a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		out, _ := cmd.Flags().GetString("output")

		a, err := newApp("doc get", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if len(args) == 1 {
			doc, err := a.GetDocument(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Document %s  %s\n", doc.ID, doc.Notes)
			for _, b := range doc.Blobs {
				fmt.Printf("  %d  %-24s  %-5s  %10s  %-7s  %s\n",
					b.BlobNumber, b.MimeType, b.Extension, formatSize(b.Length), b.Framing, b.ContentHash)
			}
			return nil
		}

		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid blob number %q", args[1])
		}
		data, blob, err := a.ReadBlob(args[0], n)
		if err != nil {
			return err
		}
		if out == "" {
			out = fmt.Sprintf("%s-%d", args[0], n)
			if blob.Extension != "" {
				out += "." + blob.Extension
			}
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing blob: %w", err)
		}
		fmt.Printf("Wrote %s to %s\n", formatSize(int64(len(data))), out)
		return nil
	},
}

// find command
var findCmd = &cobra.Command{
	Use:   "find NAME",
	Short: "Find catalogued files by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("find", args...)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		files, err := a.FindFiles(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files found.")
			return nil
		}
		for _, f := range files {
			drive := "-"
			if f.DriveID.Valid {
				drive = "#" + strconv.FormatInt(f.DriveID.Int64, 10)
			}
			state := ""
			if !f.Exists {
				state = "  [missing]"
			}
			fmt.Printf("%d  %-4s  %s  %10s  %s%s\n",
				f.ID, drive, f.ModifiedAt.Format("2006-01-02 15:04:05"), formatSize(f.Size), f.RelativePath(), state)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View catalog operation history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				duration = op.FinishedAt.Time.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage catalog snapshots",
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local catalog with the vault's snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var pass string
		if cfg.Encryption.Type == "age" {
			if pass, err = readPassphrase("Snapshot passphrase: "); err != nil {
				return err
			}
		}

		version, err := app.RestoreSnapshot(cfg, pass)
		if errors.Is(err, dcat.ErrSnapshotNotFound) {
			return fmt.Errorf("no snapshot for %s in the vault", cfg.MachineName)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Restored catalog at operation #%d\n", version)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the catalog database",
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the catalog schema",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("db schema")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		schema, err := a.Schema()
		if err != nil {
			return err
		}
		fmt.Print(schema)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Seal snapshots with an age key pair")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)

	// drives subcommands
	drivesCmd.AddCommand(drivesListCmd)
	drivesListCmd.Flags().String("machine", "", "Only drives seen by this machine")
	drivesListCmd.Flags().String("label", "", "Only drives with this volume label")
	drivesListCmd.Flags().String("serial", "", "Only the drive with this volume serial")
	drivesCmd.AddCommand(drivesRefreshCmd)

	// dup subcommands
	dupCmd.AddCommand(dupAddCmd)
	dupAddCmd.Flags().String("duplicate", "", "Whether the files are duplicates (yes/no)")
	dupAddCmd.Flags().String("first-backup", "", "Whether the first file is a backup (yes/no)")
	dupAddCmd.Flags().String("second-backup", "", "Whether the second file is a backup (yes/no)")
	dupAddCmd.Flags().String("notes", "", "Free-form notes")
	dupCmd.AddCommand(dupListCmd)

	// doc subcommands
	docCmd.AddCommand(docAddCmd)
	docAddCmd.Flags().String("notes", "", "Free-form notes")
	docAddCmd.Flags().String("to", "", "Append to this document instead of creating one")
	docCmd.AddCommand(docGetCmd)
	docGetCmd.Flags().StringP("output", "o", "", "File to write the blob to")

	snapshotCmd.AddCommand(snapshotRestoreCmd)
	dbCmd.AddCommand(dbSchemaCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(drivesCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	scanCmd.Flags().Bool("hash", false, "Compute digests while scanning")
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().Int("batch", 0, "Files per commit (0 uses the config)")
	hashCmd.Flags().Int("max", 0, "Maximum files per drive (0 uses the config)")
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("hash", false, "Compute missing digests while verifying")
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().Bool("remove", false, "Also remove the files from disk")
	rootCmd.AddCommand(dupCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(dbCmd)
}
