// Package printer renders byte ranges as hex dumps. The character column is
// decoded through a single-byte charset so that legacy text is readable.
package printer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	DefaultWidth   = 16
	DefaultCharset = "cp437"

	maxWidth = 256
)

// ErrUnknownCharset is returned by New for a charset name Charsets does not list.
var ErrUnknownCharset = errors.New("printer: unknown charset")

// Format specifies the output format for dumping.
type Format string

const (
	// FormatText outputs the classic offset/hex/characters layout.
	FormatText Format = "text"

	// FormatJSON outputs one JSON object per line.
	FormatJSON Format = "json"
)

// Options controls dump layout.
type Options struct {
	// Format specifies output format (text, json).
	// Default: FormatText
	Format Format

	// Width is the number of bytes per line, 1 to 256.
	// Default: 16
	Width int

	// Charset names the single-byte charset of the character column.
	// Default: "cp437"
	Charset string

	// ShowOffsets prefixes each text line with its offset.
	// Default: true
	ShowOffsets bool

	// Upper prints hex digits in upper case.
	// Default: false
	Upper bool
}

// DefaultOptions returns sensible defaults for dumping.
func DefaultOptions() Options {
	return Options{
		Format:      FormatText,
		Width:       DefaultWidth,
		Charset:     DefaultCharset,
		ShowOffsets: true,
	}
}

// Printer writes hex dumps to a writer.
type Printer struct {
	opts   Options
	writer io.Writer
	table  *[256]rune
}

// New creates a Printer writing to w. Zero Width, Charset and Format fall
// back to their defaults.
//
// Example:
//
//	p, _ := printer.New(os.Stdout, printer.DefaultOptions())
//	p.Dump(doc, 0, doc.Size())
func New(w io.Writer, opts Options) (*Printer, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Charset == "" {
		opts.Charset = DefaultCharset
	}
	if opts.Width < 0 || opts.Width > maxWidth {
		return nil, fmt.Errorf("printer: width %d out of range 1..%d", opts.Width, maxWidth)
	}
	switch opts.Format {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("printer: unknown format %q", opts.Format)
	}
	table, err := charTable(opts.Charset)
	if err != nil {
		return nil, err
	}
	return &Printer{opts: opts, writer: w, table: table}, nil
}

// jsonLine is one dump line in JSON format.
type jsonLine struct {
	Offset int64  `json:"offset"`
	Hex    string `json:"hex"`
	Text   string `json:"text"`
}

// Dump prints n bytes of r starting at off. A reader shorter than off+n ends
// the dump early without error.
func (p *Printer) Dump(r io.ReaderAt, off, n int64) error {
	if off < 0 || n < 0 {
		return fmt.Errorf("printer: invalid range [%d,+%d)", off, n)
	}
	sr := io.NewSectionReader(r, off, n)
	line := make([]byte, p.opts.Width)
	var sb strings.Builder
	for pos := off; ; {
		k, err := io.ReadFull(sr, line)
		if k > 0 {
			sb.Reset()
			if werr := p.writeLine(&sb, pos, line[:k]); werr != nil {
				return werr
			}
			if _, werr := io.WriteString(p.writer, sb.String()); werr != nil {
				return werr
			}
			pos += int64(k)
		}
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return nil
		case err != nil:
			return fmt.Errorf("printer: read at %d: %w", pos, err)
		}
	}
}

func (p *Printer) writeLine(sb *strings.Builder, pos int64, b []byte) error {
	if p.opts.Format == FormatJSON {
		data, err := json.Marshal(jsonLine{Offset: pos, Hex: p.hexRun(b, false), Text: p.chars(b)})
		if err != nil {
			return err
		}
		sb.Write(data)
		sb.WriteByte('\n')
		return nil
	}
	if p.opts.ShowOffsets {
		if p.opts.Upper {
			fmt.Fprintf(sb, "%08X  ", pos)
		} else {
			fmt.Fprintf(sb, "%08x  ", pos)
		}
	}
	sb.WriteString(p.hexRun(b, true))
	sb.WriteString("  |")
	sb.WriteString(p.chars(b))
	sb.WriteString("|\n")
	return nil
}

// hexRun formats b as space-separated hex pairs. Padded runs fill the whole
// line width and split it in two halves for widths of 8 and more.
func (p *Printer) hexRun(b []byte, padded bool) string {
	digits := "0123456789abcdef"
	if p.opts.Upper {
		digits = "0123456789ABCDEF"
	}
	w := p.opts.Width
	if !padded {
		w = len(b)
	}
	var sb strings.Builder
	for i := 0; i < w; i++ {
		if i > 0 {
			sb.WriteByte(' ')
			if padded && w >= 8 && i == w/2 {
				sb.WriteByte(' ')
			}
		}
		if i >= len(b) {
			sb.WriteString("  ")
			continue
		}
		sb.WriteByte(digits[b[i]>>4])
		sb.WriteByte(digits[b[i]&0x0f])
	}
	return sb.String()
}

func (p *Printer) chars(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(p.table[c])
	}
	return sb.String()
}
