package binstruct

import (
	"reflect"

	"github.com/edward6/reiser4-sub006/internal/binstruct/binint"
)

// Aliases so that callers that need an explicit-width field can spell
// it binstruct.U32le instead of reaching into the binint package.
type (
	U8    = binint.U8
	U16le = binint.U16le
	U32le = binint.U32le
	U64le = binint.U64le
	I8    = binint.I8
	I16le = binint.I16le
	I32le = binint.I32le
	I64le = binint.I64le
)

// intKind2Type maps a plain Go int/uint kind onto the little-endian
// binint type that implements Marshal/Unmarshal for it, so that
// ordinary struct fields (uint64, int32, ...) don't need to be
// spelled out as binint types to be usable in a tagged struct.
var intKind2Type = map[reflect.Kind]reflect.Type{
	reflect.Uint8:  reflect.TypeOf(U8(0)),
	reflect.Int8:   reflect.TypeOf(I8(0)),
	reflect.Uint16: reflect.TypeOf(U16le(0)),
	reflect.Int16:  reflect.TypeOf(I16le(0)),
	reflect.Uint32: reflect.TypeOf(U32le(0)),
	reflect.Int32:  reflect.TypeOf(I32le(0)),
	reflect.Uint64: reflect.TypeOf(U64le(0)),
	reflect.Int64:  reflect.TypeOf(I64le(0)),
}
