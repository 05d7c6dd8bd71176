// Package patch applies byte-level edits to files in place.
//
// Edits are collected into a delta document over the target file and written
// back with a single in-place save, so only the changed regions and the
// shifted tail are rewritten. Nothing reaches the file until every operation
// has been applied to the document.
//
// # Operations
//
//	ops := []patch.EditOp{
//	    patch.OpReplace{Offset: 0x10, Data: []byte{0xde, 0xad}},
//	    patch.OpInsert{Offset: 0x200, Data: []byte("hello")},
//	    patch.OpRemove{Offset: 0x400, Length: 16},
//	}
//	res, err := patch.Apply(ctx, "firmware.bin", ops, &patch.Options{CreateBackup: true})
//
// # Scripts
//
// ParseScript reads a line-oriented script, one operation per line:
//
//	# comment
//	insert   <offset> <data>
//	remove   <offset> <length>
//	replace  <offset> <data>
//	fill     <offset> <length> <byte>
//	truncate <size>
//	splice   <offset> <path> <source-offset> <length>
//
// Numbers accept 0x, 0o and 0b prefixes. <data> is either hex:<digits> or a
// Go-quoted string. A splice length of -1 copies to the end of the source.
// Scripts may be UTF-8 or UTF-16 with a byte-order mark.
package patch
