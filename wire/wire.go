// Copyright 2025 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"encoding/binary"
	"fmt"
)

// Sizes of the individual protocol elements in bytes.
const (
	CommandSize    = 4
	PageOffsetSize = 8
	AckSize        = 4
)

// Command identifies the operation a pool server is requested to carry out.
type Command uint32

// MapCommand requests the pool server to take the page content referenced by
// the accompanying file descriptor and to place it at the accompanying page
// offset into the pool.
const MapCommand Command = 1

// Ack is the acknowledgement code returned by a pool server; [AckOK] signals
// success, anything else is an errno value.
type Ack uint32

const AckOK Ack = 0

func (c Command) String() string {
	switch c {
	case MapCommand:
		return "map"
	}
	return fmt.Sprintf("Command(%d)", uint32(c))
}

// Encoder encodes protocol elements into an internal buffer.
type Encoder struct {
	buff [PageOffsetSize]byte
}

// NewEncoder returns a new encoder that maintains an internal buffer to encode
// into.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Command returns the wire representation of the passed command. The returned
// slice becomes invalid at the next call to any encoding method.
func (e *Encoder) Command(c Command) []byte {
	binary.LittleEndian.PutUint32(e.buff[:CommandSize], uint32(c))
	return e.buff[:CommandSize]
}

// PageOffset returns the wire representation of the passed pool page offset.
// The returned slice becomes invalid at the next call to any encoding method.
func (e *Encoder) PageOffset(pgoff uint64) []byte {
	binary.LittleEndian.PutUint64(e.buff[:PageOffsetSize], pgoff)
	return e.buff[:PageOffsetSize]
}

// Ack returns the wire representation of the passed acknowledgement. The
// returned slice becomes invalid at the next call to any encoding method.
func (e *Encoder) Ack(a Ack) []byte {
	binary.LittleEndian.PutUint32(e.buff[:AckSize], uint32(a))
	return e.buff[:AckSize]
}

// Decoder decodes protocol elements from an internal receive buffer.
type Decoder struct {
	buff [PageOffsetSize]byte
}

// NewDecoder returns a new decoder that maintains an internal buffer to receive
// encoded data into, and to decode from.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Buffer returns a buffer slice of exactly size bytes to be used for receiving
// data. size must not exceed [PageOffsetSize].
func (d *Decoder) Buffer(size int) []byte {
	return d.buff[:size]
}

// Command decodes a command from the first n bytes received into the buffer.
func (d *Decoder) Command(n int) (Command, error) {
	if n != CommandSize {
		return 0, fmt.Errorf("short command, expected %d bytes, got %d", CommandSize, n)
	}
	return Command(binary.LittleEndian.Uint32(d.buff[:CommandSize])), nil
}

// PageOffset decodes a pool page offset from the first n bytes received into
// the buffer.
func (d *Decoder) PageOffset(n int) (uint64, error) {
	if n != PageOffsetSize {
		return 0, fmt.Errorf("short page offset, expected %d bytes, got %d", PageOffsetSize, n)
	}
	return binary.LittleEndian.Uint64(d.buff[:PageOffsetSize]), nil
}

// Ack decodes an acknowledgement from the first n bytes received into the
// buffer.
func (d *Decoder) Ack(n int) (Ack, error) {
	if n != AckSize {
		return 0, fmt.Errorf("short acknowledgement, expected %d bytes, got %d", AckSize, n)
	}
	return Ack(binary.LittleEndian.Uint32(d.buff[:AckSize])), nil
}
