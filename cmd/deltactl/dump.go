package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/deltakit/delta"
	"github.com/joshuapare/deltakit/delta/printer"
	"github.com/joshuapare/deltakit/internal/logger"
)

var (
	dumpOffset    string
	dumpLength    string
	dumpWidth     int
	dumpCharset   string
	dumpUpper     bool
	dumpNoOffsets bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().StringVarP(&dumpOffset, "offset", "s", "0", "Start offset")
	cmd.Flags().StringVarP(&dumpLength, "length", "n", "256", "Bytes to dump (-1 for all)")
	cmd.Flags().IntVarP(&dumpWidth, "width", "w", printer.DefaultWidth, "Bytes per line")
	cmd.Flags().StringVar(&dumpCharset, "charset", printer.DefaultCharset,
		"Charset of the character column ("+strings.Join(printer.Charsets(), ", ")+")")
	cmd.Flags().BoolVar(&dumpUpper, "upper", false, "Upper-case hex digits")
	cmd.Flags().BoolVar(&dumpNoOffsets, "no-offsets", false, "Omit the offset column")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print a hex dump of a file range",
		Long: `The dump command prints a range of a file as hex with a character
column decoded through a single-byte charset.

Example:
  deltactl dump disk.img
  deltactl dump disk.img --offset 0x1be --length 64
  deltactl dump legacy.dat --charset cp850 --length -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

func runDump(args []string) error {
	path := args[0]
	off, err := parseNumber("offset", dumpOffset)
	if err != nil {
		return err
	}
	n, err := parseNumber("length", dumpLength)
	if err != nil {
		return err
	}

	opts := printer.DefaultOptions()
	opts.Width = dumpWidth
	opts.Charset = dumpCharset
	opts.Upper = dumpUpper
	opts.ShowOffsets = !dumpNoOffsets
	if jsonOut {
		opts.Format = printer.FormatJSON
	}
	p, err := printer.New(os.Stdout, opts)
	if err != nil {
		return err
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
	if off < 0 || off > doc.Size() {
		return fmt.Errorf("offset %d outside file of %d bytes", off, doc.Size())
	}
	if n < 0 || n > doc.Size()-off {
		n = doc.Size() - off
	}
	printVerbose("Dumping %d bytes at %d of %s\n", n, off, path)
	return p.Dump(doc, off, n)
}
