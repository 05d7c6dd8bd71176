package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/deltakit/delta"
	"github.com/joshuapare/deltakit/internal/logger"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Report size and content digest of a file",
		Long: `The info command opens a file read-only and reports its size,
modification time and the xxhash64 digest of its content.

Example:
  deltactl info disk.img
  deltactl info disk.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

type fileInfo struct {
	File     string `json:"file"`
	Size     int64  `json:"size"`
	Digest   string `json:"xxhash64"`
	Modified string `json:"modified"`
}

func runInfo(args []string) error {
	path := args[0]

	printVerbose("Opening file: %s\n", path)

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	repo := delta.NewRepository(&delta.Options{Logger: logger.L})
	defer repo.Close()
	fs, err := repo.OpenFile(path, delta.ReadOnly)
	if err != nil {
		return err
	}
	doc, err := repo.OpenDocument(fs)
	if err != nil {
		return err
	}
	sum, err := doc.Digest()
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}

	info := fileInfo{
		File:     path,
		Size:     doc.Size(),
		Digest:   fmt.Sprintf("%016x", sum),
		Modified: stat.ModTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nFile Information:\n")
	printInfo("  File: %s\n", info.File)
	printInfo("  Size: %s (%s bytes)\n", humanize.IBytes(uint64(info.Size)), humanize.Comma(info.Size))
	printInfo("  Modified: %s (%s)\n", info.Modified, humanize.Time(stat.ModTime()))
	printInfo("  xxhash64: %s\n", info.Digest)
	return nil
}
