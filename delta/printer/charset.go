package printer

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

var charmaps = map[string]*charmap.Charmap{
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
	"cp852":        charmap.CodePage852,
	"cp866":        charmap.CodePage866,
	"iso8859-1":    charmap.ISO8859_1,
	"iso8859-2":    charmap.ISO8859_2,
	"iso8859-15":   charmap.ISO8859_15,
	"koi8-r":       charmap.KOI8R,
	"macintosh":    charmap.Macintosh,
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
}

// Charsets lists the charset names accepted in Options.Charset.
func Charsets() []string {
	names := []string{"ascii"}
	for name := range charmaps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// charTable maps every byte to the rune shown for it. Bytes that decode to
// a non-printable rune show as '.'.
func charTable(name string) (*[256]rune, error) {
	name = strings.ToLower(name)
	var decode func(byte) rune
	if name == "ascii" {
		decode = func(b byte) rune {
			if b < 0x80 {
				return rune(b)
			}
			return unicode.ReplacementChar
		}
	} else {
		cm, ok := charmaps[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
		}
		decode = cm.DecodeByte
	}
	var t [256]rune
	for i := range t {
		r := decode(byte(i))
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			r = '.'
		}
		t[i] = r
	}
	return &t, nil
}
