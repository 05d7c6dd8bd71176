package patch

// EditOp represents a single byte-level edit.
type EditOp interface{ isEdit() }

// OpInsert inserts Data at Offset.
type OpInsert struct {
	Offset int64
	Data   []byte
}

func (OpInsert) isEdit() {}

// OpRemove removes Length bytes at Offset.
type OpRemove struct {
	Offset int64
	Length int64
}

func (OpRemove) isEdit() {}

// OpReplace overwrites len(Data) bytes at Offset, extending the file if the
// range runs past its end.
type OpReplace struct {
	Offset int64
	Data   []byte
}

func (OpReplace) isEdit() {}

// OpFill overwrites Length bytes at Offset with Value.
type OpFill struct {
	Offset int64
	Length int64
	Value  byte
}

func (OpFill) isEdit() {}

// OpTruncate sets the file size. Growing pads with zeros.
type OpTruncate struct {
	Size int64
}

func (OpTruncate) isEdit() {}

// OpSplice inserts Length bytes of the file at Source, starting at
// SourceOffset, at Offset. A negative Length copies to the end of Source.
type OpSplice struct {
	Offset       int64
	Source       string
	SourceOffset int64
	Length       int64
}

func (OpSplice) isEdit() {}
