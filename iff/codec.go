package iff

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding"
)

// Everything in the container is little-endian regardless of host byte order.

const (
	headerSize  = 8
	versionSize = 4
)

type Option func(*options)

type options struct {
	enc encoding.Encoding
}

// WithEncoding transcodes strings between utf-8 and enc on read and write.
// A nil encoding keeps the raw bytes.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.enc = enc
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func AppendInt8(b []byte, v int8) []byte   { return append(b, byte(v)) }
func AppendUint8(b []byte, v uint8) []byte { return append(b, v) }

func AppendInt16(b []byte, v int16) []byte {
	return binary.LittleEndian.AppendUint16(b, uint16(v))
}

func AppendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func AppendInt32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func AppendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func AppendFloat(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func AppendVec2(b []byte, v [2]float32) []byte {
	return AppendFloat(AppendFloat(b, v[0]), v[1])
}

func AppendVec3(b []byte, v [3]float32) []byte {
	for _, f := range v {
		b = AppendFloat(b, f)
	}
	return b
}

func AppendVec4(b []byte, v [4]float32) []byte {
	for _, f := range v {
		b = AppendFloat(b, f)
	}
	return b
}

// AppendBool writes the canonical 1 or 0.
func AppendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func AppendString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}

func Int16(b []byte) int16   { return int16(binary.LittleEndian.Uint16(b)) }
func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func Int32(b []byte) int32   { return int32(binary.LittleEndian.Uint32(b)) }
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func Float(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
