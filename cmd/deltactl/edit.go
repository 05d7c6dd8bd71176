package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/deltakit/pkg/patch"
)

var (
	editBackup bool
	editDryRun bool
)

// addEditFlags registers the flags shared by every modifying command.
func addEditFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolVar(&editBackup, "backup", false, "Copy the file to <file>.bak first")
	cmd.Flags().BoolVar(&editDryRun, "dry-run", false, "Report the result without writing")
	return cmd
}

func init() {
	rootCmd.AddCommand(
		addEditFlags(newEditCmd("insert <file> <offset> <data>", "Insert bytes at an offset", 3, runInsert)),
		addEditFlags(newEditCmd("remove <file> <offset> <length>", "Remove a byte range", 3, runRemove)),
		addEditFlags(newEditCmd("replace <file> <offset> <data>", "Overwrite bytes at an offset", 3, runReplace)),
		addEditFlags(newEditCmd("fill <file> <offset> <length> <byte>", "Set a byte range to one value", 4, runFill)),
		addEditFlags(newEditCmd("truncate <file> <size>", "Shrink or zero-extend a file", 2, runTruncate)),
		addEditFlags(newEditCmd("splice <file> <offset> <source> <source-offset> <length>",
			"Insert a range of another file", 5, runSplice)),
	)
}

func newEditCmd(use, short string, nargs int, run func([]string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Offsets and lengths accept 0x, 0o and 0b prefixes. Data is hex:<digits>, a
Go-quoted string, or taken literally.

Example:
  deltactl insert disk.img 0x200 hex:deadbeef
  deltactl replace notes.txt 0 '"Hello\n"'
  deltactl remove disk.img 512 16 --backup
  deltactl fill disk.img 0 446 0
  deltactl splice disk.img 0 mbr.bin 0 512`,
		Args: cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}

func runInsert(args []string) error {
	off, err := parseNumber("offset", args[1])
	if err != nil {
		return err
	}
	data, err := parseDataArg(args[2])
	if err != nil {
		return err
	}
	return runPatch(args[0], []patch.EditOp{patch.OpInsert{Offset: off, Data: data}})
}

func runRemove(args []string) error {
	off, err := parseNumber("offset", args[1])
	if err != nil {
		return err
	}
	n, err := parseNumber("length", args[2])
	if err != nil {
		return err
	}
	return runPatch(args[0], []patch.EditOp{patch.OpRemove{Offset: off, Length: n}})
}

func runReplace(args []string) error {
	off, err := parseNumber("offset", args[1])
	if err != nil {
		return err
	}
	data, err := parseDataArg(args[2])
	if err != nil {
		return err
	}
	return runPatch(args[0], []patch.EditOp{patch.OpReplace{Offset: off, Data: data}})
}

func runFill(args []string) error {
	off, err := parseNumber("offset", args[1])
	if err != nil {
		return err
	}
	n, err := parseNumber("length", args[2])
	if err != nil {
		return err
	}
	v, err := parseNumber("byte", args[3])
	if err != nil {
		return err
	}
	if v < 0 || v > 0xff {
		return fmt.Errorf("invalid byte %q", args[3])
	}
	return runPatch(args[0], []patch.EditOp{patch.OpFill{Offset: off, Length: n, Value: byte(v)}})
}

func runTruncate(args []string) error {
	size, err := parseNumber("size", args[1])
	if err != nil {
		return err
	}
	return runPatch(args[0], []patch.EditOp{patch.OpTruncate{Size: size}})
}

func runSplice(args []string) error {
	off, err := parseNumber("offset", args[1])
	if err != nil {
		return err
	}
	srcOff, err := parseNumber("source offset", args[3])
	if err != nil {
		return err
	}
	n, err := parseNumber("length", args[4])
	if err != nil {
		return err
	}
	return runPatch(args[0], []patch.EditOp{
		patch.OpSplice{Offset: off, Source: args[2], SourceOffset: srcOff, Length: n},
	})
}

// parseDataArg accepts the script data syntax and falls back to the literal
// argument bytes.
func parseDataArg(s string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(s), "hex:") || strings.HasPrefix(s, `"`) {
		return patch.ParseData(s)
	}
	return []byte(s), nil
}

type patchSummary struct {
	File           string `json:"file"`
	DryRun         bool   `json:"dry_run"`
	Applied        int    `json:"applied"`
	Skipped        int    `json:"skipped"`
	OldSize        int64  `json:"old_size"`
	NewSize        int64  `json:"new_size"`
	Digest         string `json:"xxhash64"`
	Backup         string `json:"backup,omitempty"`
	BytesWritten   int64  `json:"bytes_written"`
	BytesInPlace   int64  `json:"bytes_in_place"`
	ConflictChunks int    `json:"conflict_chunks"`
	PreloadedBytes int64  `json:"preloaded_bytes"`
	FlushedRanges  int    `json:"flushed_ranges"`
	Duration       string `json:"duration,omitempty"`
}

// runPatch applies ops to path with the global and edit flags and prints a
// summary.
func runPatch(path string, ops []patch.EditOp) error {
	opts, err := patchOptions()
	if err != nil {
		return err
	}
	opts.CreateBackup = editBackup
	opts.DryRun = editDryRun

	printVerbose("Applying %d operation(s) to %s\n", len(ops), path)

	res, err := patch.Apply(context.Background(), path, ops, opts)
	if err != nil {
		return fmt.Errorf("failed to patch %s: %w", path, err)
	}

	sum := patchSummary{
		File:    path,
		DryRun:  editDryRun,
		Applied: res.Applied,
		Skipped: res.Skipped,
		OldSize: res.OldSize,
		NewSize: res.NewSize,
		Digest:  fmt.Sprintf("%016x", res.Digest),
		Backup:  res.BackupPath,
	}
	if st := res.Stats; st != nil {
		sum.BytesWritten = st.BytesWritten
		sum.BytesInPlace = st.BytesInPlace
		sum.ConflictChunks = st.ConflictChunks
		sum.PreloadedBytes = st.PreloadedBytes
		sum.FlushedRanges = st.FlushedRanges
		sum.Duration = st.Duration.String()
	}
	if jsonOut {
		return printJSON(sum)
	}

	verb := "Patched"
	if sum.DryRun {
		verb = "Would patch"
	}
	printInfo("%s %s: %d operation(s), %s -> %s\n", verb, path, sum.Applied,
		humanize.IBytes(uint64(sum.OldSize)), humanize.IBytes(uint64(sum.NewSize)))
	if sum.Backup != "" {
		printInfo("  Backup: %s\n", sum.Backup)
	}
	if res.Stats != nil {
		printInfo("  Written: %s, unchanged in place: %s\n",
			humanize.IBytes(uint64(sum.BytesWritten)), humanize.IBytes(uint64(sum.BytesInPlace)))
		printVerbose("  Conflict chunks: %d, preloaded: %s, flushed ranges: %d, took %s\n",
			sum.ConflictChunks, humanize.IBytes(uint64(sum.PreloadedBytes)), sum.FlushedRanges, sum.Duration)
	}
	printInfo("  xxhash64: %s\n", sum.Digest)
	return nil
}
