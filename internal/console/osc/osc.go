// Package osc implements the subset of Open Sound Control used by
// OSC-speaking consoles: single messages with float32, int32, string,
// and blob arguments. Bundles are not used by any supported console.
package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// Arg is one decoded OSC argument.
type Arg struct {
	Tag   byte // 'f', 'i', 's', 'b'
	Float float64
	Int   int32
	Str   string
	Blob  []byte
}

// Message is a single OSC message.
type Message struct {
	Addr string
	Args []Arg
}

// ErrMalformed is returned for any frame that cannot be decoded.
// Callers drop such frames silently.
var ErrMalformed = errors.New("osc: malformed message")

func pad4(b *bytes.Buffer) {
	for b.Len()%4 != 0 {
		b.WriteByte(0)
	}
}

func writePaddedString(b *bytes.Buffer, s string) {
	b.WriteString(s)
	b.WriteByte(0)
	pad4(b)
}

// EncodeQuery encodes an argument-less message, used for parameter
// queries and subscription keepalives.
func EncodeQuery(addr string) []byte {
	var b bytes.Buffer
	writePaddedString(&b, addr)
	return b.Bytes()
}

// EncodeFloat encodes addr with a single float32 argument.
func EncodeFloat(addr string, value float64) []byte {
	var b bytes.Buffer
	writePaddedString(&b, addr)
	writePaddedString(&b, ",f")
	binary.Write(&b, binary.BigEndian, math.Float32bits(float32(value)))
	return b.Bytes()
}

// EncodeInt encodes addr with a single int32 argument.
func EncodeInt(addr string, value int32) []byte {
	var b bytes.Buffer
	writePaddedString(&b, addr)
	writePaddedString(&b, ",i")
	binary.Write(&b, binary.BigEndian, value)
	return b.Bytes()
}

// EncodeString encodes addr with a single string argument.
func EncodeString(addr string, value string) []byte {
	var b bytes.Buffer
	writePaddedString(&b, addr)
	writePaddedString(&b, ",s")
	writePaddedString(&b, value)
	return b.Bytes()
}

// readPaddedString consumes a null-terminated, 4-byte-aligned string
// starting at off. It returns the string and the next offset.
func readPaddedString(data []byte, off int) (string, int, error) {
	if off >= len(data) {
		return "", 0, ErrMalformed
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", 0, ErrMalformed
	}
	s := string(data[off : off+end])
	next := off + end + 1
	for next%4 != 0 {
		next++
	}
	return s, next, nil
}

// Decode parses a single OSC message. Messages with no type tag (bare
// queries) decode to a Message with nil Args.
func Decode(data []byte) (Message, error) {
	if len(data) < 4 || data[0] != '/' {
		return Message{}, ErrMalformed
	}

	addr, off, err := readPaddedString(data, 0)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Addr: addr}

	if off >= len(data) {
		return msg, nil // query, no arguments
	}
	if data[off] != ',' {
		return Message{}, ErrMalformed
	}

	tags, off, err := readPaddedString(data, off)
	if err != nil {
		return Message{}, err
	}

	for _, tag := range []byte(tags[1:]) {
		var arg Arg
		arg.Tag = tag
		switch tag {
		case 'f':
			if off+4 > len(data) {
				return Message{}, ErrMalformed
			}
			bits := binary.BigEndian.Uint32(data[off:])
			arg.Float = float64(math.Float32frombits(bits))
			off += 4
		case 'i':
			if off+4 > len(data) {
				return Message{}, ErrMalformed
			}
			arg.Int = int32(binary.BigEndian.Uint32(data[off:]))
			off += 4
		case 's':
			var s string
			s, off, err = readPaddedString(data, off)
			if err != nil {
				return Message{}, err
			}
			arg.Str = s
		case 'b':
			if off+4 > len(data) {
				return Message{}, ErrMalformed
			}
			size := int(binary.BigEndian.Uint32(data[off:]))
			off += 4
			if size < 0 || off+size > len(data) {
				return Message{}, ErrMalformed
			}
			arg.Blob = data[off : off+size]
			off += size
			for off%4 != 0 {
				off++
			}
		default:
			return Message{}, ErrMalformed
		}
		msg.Args = append(msg.Args, arg)
	}

	return msg, nil
}

// DecodeLevels interprets a blob as consecutive big-endian float32
// level values, as delivered in console meter frames.
func DecodeLevels(blob []byte) []float64 {
	n := len(blob) / 4
	levels := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		bits := binary.BigEndian.Uint32(blob[i*4:])
		levels = append(levels, float64(math.Float32frombits(bits)))
	}
	return levels
}
