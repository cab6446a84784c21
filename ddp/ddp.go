// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package ddp serializes and sends RGB frame data to networked LED
// fixtures using the Distributed Display Protocol (spec.md §4.1): a
// 10-byte header followed by payload, chunked at 1440-byte (480-pixel)
// boundaries, with a 4-bit sequence counter that cycles 1..15 per frame.
package ddp

import (
	"encoding/binary"
)

// Protocol constants, bit-exact per spec.md §4.1.
const (
	headerLen = 10

	verByte     byte = 0x40 // VER1
	pushFlag    byte = 0x01
	dataTypeRGB byte = 0x0B // RGB, 8-bit
	destID      byte = 0x01

	// MaxDatagramPixels is the default chunk boundary: 480 pixels × 3
	// bytes/pixel = 1440 bytes, the largest payload a single DDP packet
	// may carry.
	MaxDatagramPixels = 480
	// MaxDatalen is the maximum payload length in bytes per packet.
	MaxDatalen = MaxDatagramPixels * 3

	minSequence = 1
	maxSequence = 15
)

// Packet is one serialized DDP datagram (header + payload).
type Packet struct {
	Push     bool
	Sequence byte
	Offset   uint32
	Payload  []byte
}

// Bytes renders the packet to its wire form: a 10-byte header followed by
// the payload.
func (p Packet) Bytes() []byte {
	buf := make([]byte, headerLen+len(p.Payload))

	b0 := verByte
	if p.Push {
		b0 |= pushFlag
	}
	buf[0] = b0
	buf[1] = p.Sequence & 0x0F
	buf[2] = dataTypeRGB
	buf[3] = destID
	binary.BigEndian.PutUint32(buf[4:8], p.Offset)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(p.Payload)))
	copy(buf[headerLen:], p.Payload)

	return buf
}

// Chunk splits rgbBytes (the payload starting at byteOffset bytes from the
// start of the fixture's display) into one or more DDP packets, each
// carrying at most MaxDatalen bytes. Chunks are ordered by ascending
// offset; only the last one sets Push.
func Chunk(sequence byte, byteOffset uint32, rgbBytes []byte) []Packet {
	if len(rgbBytes) == 0 {
		return []Packet{{
			Push:     true,
			Sequence: sequence,
			Offset:   byteOffset,
			Payload:  nil,
		}}
	}

	var packets []Packet
	offset := byteOffset
	remaining := rgbBytes

	for len(remaining) > 0 {
		n := len(remaining)
		if n > MaxDatalen {
			n = MaxDatalen
		}
		chunk := remaining[:n]
		remaining = remaining[n:]

		packets = append(packets, Packet{
			Push:     len(remaining) == 0,
			Sequence: sequence,
			Offset:   offset,
			Payload:  chunk,
		})
		offset += uint32(n)
	}

	return packets
}

// SequenceCounter produces the per-frame sequence number, cycling 1..15
// (0 is never used) per spec.md §4.1.
type SequenceCounter struct {
	current byte
}

// Next advances and returns the next sequence number.
func (c *SequenceCounter) Next() byte {
	if c.current < minSequence || c.current >= maxSequence {
		c.current = minSequence
	} else {
		c.current++
	}
	return c.current
}
