package patch

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	commentPrefix = "#"
	hexPrefix     = "hex:"
	quote         = `"`
)

// ErrSyntax is wrapped by every script parse error.
var ErrSyntax = errors.New("patch: syntax error")

// ScriptError reports the script line a parse error occurred on.
type ScriptError struct {
	Line int
	Err  error
}

func (e *ScriptError) Error() string { return fmt.Sprintf("patch: line %d: %v", e.Line, e.Err) }

func (e *ScriptError) Unwrap() error { return e.Err }

// ParseScriptFile parses the script at path.
func ParseScriptFile(path string) ([]EditOp, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("script not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return ParseScriptBytes(data)
}

// ParseScript parses script text into operations.
func ParseScript(text string) ([]EditOp, error) {
	return ParseScriptBytes([]byte(text))
}

// ParseScriptBytes parses a script. A UTF-16 or UTF-8 byte-order mark
// selects the encoding; without one the script is read as UTF-8.
func ParseScriptBytes(data []byte) ([]EditOp, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(bytes.NewReader(data), dec))
	var ops []EditOp
	line := 0
	for scanner.Scan() {
		line++
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" || strings.HasPrefix(trim, commentPrefix) {
			continue
		}
		op, err := parseLine(trim)
		if err != nil {
			return nil, &ScriptError{Line: line, Err: err}
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// arity is the argument count of each command.
var arity = map[string]int{"insert": 2, "remove": 2, "replace": 2, "fill": 3, "truncate": 1, "splice": 4}

func parseLine(line string) (EditOp, error) {
	cmd, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		cmd, rest = line[:i], line[i:]
	}
	args, err := splitArgs(rest)
	if err != nil {
		return nil, err
	}
	n, ok := arity[strings.ToLower(cmd)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrSyntax, cmd)
	}
	if len(args) != n {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrSyntax, cmd, n, len(args))
	}

	nums := make([]int64, len(args))
	number := func(i int) error {
		v, err := strconv.ParseInt(args[i], 0, 64)
		if err != nil {
			return fmt.Errorf("%w: bad number %q", ErrSyntax, args[i])
		}
		nums[i] = v
		return nil
	}

	switch strings.ToLower(cmd) {
	case "insert", "replace":
		if err := number(0); err != nil {
			return nil, err
		}
		data, err := ParseData(args[1])
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(cmd, "insert") {
			return OpInsert{Offset: nums[0], Data: data}, nil
		}
		return OpReplace{Offset: nums[0], Data: data}, nil

	case "remove":
		for i := 0; i < 2; i++ {
			if err := number(i); err != nil {
				return nil, err
			}
		}
		return OpRemove{Offset: nums[0], Length: nums[1]}, nil

	case "fill":
		for i := 0; i < 2; i++ {
			if err := number(i); err != nil {
				return nil, err
			}
		}
		v, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad byte %q", ErrSyntax, args[2])
		}
		return OpFill{Offset: nums[0], Length: nums[1], Value: byte(v)}, nil

	case "truncate":
		if err := number(0); err != nil {
			return nil, err
		}
		return OpTruncate{Size: nums[0]}, nil

	default: // splice
		for _, i := range []int{0, 2, 3} {
			if err := number(i); err != nil {
				return nil, err
			}
		}
		src := args[1]
		if strings.HasPrefix(src, quote) {
			s, err := strconv.Unquote(src)
			if err != nil {
				return nil, fmt.Errorf("%w: bad path %s", ErrSyntax, src)
			}
			src = s
		}
		return OpSplice{Offset: nums[0], Source: src, SourceOffset: nums[2], Length: nums[3]}, nil
	}
}

// splitArgs splits on whitespace, keeping Go-quoted strings whole.
func splitArgs(s string) ([]string, error) {
	var args []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return args, nil
		}
		if strings.HasPrefix(s, quote) {
			q, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated string %s", ErrSyntax, s)
			}
			args = append(args, q)
			s = s[len(q):]
			continue
		}
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			end = len(s)
		}
		args = append(args, s[:end])
		s = s[end:]
	}
}

// ParseData decodes a data argument: hex:<digits> or a Go-quoted string.
func ParseData(s string) ([]byte, error) {
	switch {
	case strings.HasPrefix(strings.ToLower(s), hexPrefix):
		b, err := hex.DecodeString(s[len(hexPrefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex data: %v", ErrSyntax, err)
		}
		return b, nil
	case strings.HasPrefix(s, quote):
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad string %s", ErrSyntax, s)
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: data must be hex:.. or a quoted string, got %q", ErrSyntax, s)
	}
}

// FormatScript renders ops in script syntax. Data is written as hex so the
// output round-trips through ParseScript.
func FormatScript(w io.Writer, ops []EditOp) error {
	for _, op := range ops {
		var line string
		switch op := op.(type) {
		case OpInsert:
			line = fmt.Sprintf("insert %d hex:%x", op.Offset, op.Data)
		case OpRemove:
			line = fmt.Sprintf("remove %d %d", op.Offset, op.Length)
		case OpReplace:
			line = fmt.Sprintf("replace %d hex:%x", op.Offset, op.Data)
		case OpFill:
			line = fmt.Sprintf("fill %d %d 0x%02x", op.Offset, op.Length, op.Value)
		case OpTruncate:
			line = fmt.Sprintf("truncate %d", op.Size)
		case OpSplice:
			line = fmt.Sprintf("splice %d %s %d %d", op.Offset, strconv.Quote(op.Source), op.SourceOffset, op.Length)
		default:
			return fmt.Errorf("unknown operation type: %T", op)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
