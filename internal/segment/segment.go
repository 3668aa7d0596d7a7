// Package segment implements the VM's segmented linear memory (spec §4.2):
// a single contiguous byte buffer partitioned at construction into named,
// fixed-size, non-overlapping regions.
//
// This adapts the bounds-checked-access and typed-error idiom of the
// teacher's internal/mem.PagedCore to a non-paged, fixed-at-construction
// layout: spec §4.2 requires segment sizes to be configuration constants
// and forbids resizing any segment during execution, which a growable page
// model does not fit.
package segment

import (
	"encoding/binary"
	"fmt"
)

// ID names one of the five segments.
type ID uint8

const (
	Stack ID = iota
	RStack
	Code
	String
	Global
	numSegments
)

func (id ID) String() string {
	switch id {
	case Stack:
		return "STACK"
	case RStack:
		return "RSTACK"
	case Code:
		return "CODE"
	case String:
		return "STRING"
	case Global:
		return "GLOBAL"
	default:
		return fmt.Sprintf("SEG(%d)", id)
	}
}

// OverflowError reports a write that would cross a segment's upper bound.
type OverflowError struct {
	Seg  ID
	Addr uint32
}

func (e OverflowError) Error() string {
	return fmt.Sprintf("%v overflow @%v", e.Seg, e.Addr)
}

// UnderflowError reports a read or write before a segment's lower bound.
type UnderflowError struct {
	Seg  ID
	Addr uint32
}

func (e UnderflowError) Error() string {
	return fmt.Sprintf("%v underflow @%v", e.Seg, e.Addr)
}

// Sizes configures the byte size of each segment at construction. GLOBAL
// houses the symbol dictionary (spec §3 "Dictionary entries... live in the
// global segment"); HEAP from spec §3's segment-identifier enumeration is
// deliberately not instantiated here since no built-in or
// data-model operation in spec.md ever allocates from it.
type Sizes struct {
	Stack  uint32
	RStack uint32
	Code   uint32
	String uint32
	Global uint32
}

type region struct {
	base uint32
	size uint32
}

// Memory is the single backing buffer, partitioned into contiguous
// regions. Regions never move or resize after construction.
type Memory struct {
	buf     []byte
	regions [numSegments]region
}

// New allocates a Memory with the given per-segment sizes, contiguous in
// the order Stack, RStack, Code, String, Global.
func New(sizes Sizes) *Memory {
	order := [numSegments]uint32{sizes.Stack, sizes.RStack, sizes.Code, sizes.String, sizes.Global}
	m := &Memory{}
	var base uint32
	for i, size := range order {
		m.regions[i] = region{base: base, size: size}
		base += size
	}
	m.buf = make([]byte, base)
	return m
}

// Size returns the configured byte size of a segment.
func (m *Memory) Size(seg ID) uint32 { return m.regions[seg].size }

func (m *Memory) checkRange(seg ID, addr, n uint32, op string) error {
	r := m.regions[seg]
	if addr > r.size {
		return UnderflowError{seg, addr}
	}
	if addr+n > r.size {
		return OverflowError{seg, addr}
	}
	return nil
}

func (m *Memory) abs(seg ID, addr uint32) uint32 {
	return m.regions[seg].base + addr
}

// ReadByte reads one byte at a segment-relative offset.
func (m *Memory) ReadByte(seg ID, addr uint32) (byte, error) {
	if err := m.checkRange(seg, addr, 1, "read"); err != nil {
		return 0, err
	}
	return m.buf[m.abs(seg, addr)], nil
}

// WriteByte writes one byte at a segment-relative offset.
func (m *Memory) WriteByte(seg ID, addr uint32, v byte) error {
	if err := m.checkRange(seg, addr, 1, "write"); err != nil {
		return err
	}
	m.buf[m.abs(seg, addr)] = v
	return nil
}

// ReadU16 reads a little-endian uint16 at a segment-relative offset.
func (m *Memory) ReadU16(seg ID, addr uint32) (uint16, error) {
	if err := m.checkRange(seg, addr, 2, "read"); err != nil {
		return 0, err
	}
	a := m.abs(seg, addr)
	return binary.LittleEndian.Uint16(m.buf[a : a+2]), nil
}

// WriteU16 writes a little-endian uint16 at a segment-relative offset.
func (m *Memory) WriteU16(seg ID, addr uint32, v uint16) error {
	if err := m.checkRange(seg, addr, 2, "write"); err != nil {
		return err
	}
	a := m.abs(seg, addr)
	binary.LittleEndian.PutUint16(m.buf[a:a+2], v)
	return nil
}

// ReadCell reads a 4-byte little-endian cell at a segment-relative, 4-byte
// aligned offset.
func (m *Memory) ReadCell(seg ID, addr uint32) (uint32, error) {
	if err := m.checkRange(seg, addr, 4, "read"); err != nil {
		return 0, err
	}
	a := m.abs(seg, addr)
	return binary.LittleEndian.Uint32(m.buf[a : a+4]), nil
}

// WriteCell writes a 4-byte little-endian cell at a segment-relative,
// 4-byte aligned offset.
func (m *Memory) WriteCell(seg ID, addr uint32, v uint32) error {
	if err := m.checkRange(seg, addr, 4, "write"); err != nil {
		return err
	}
	a := m.abs(seg, addr)
	binary.LittleEndian.PutUint32(m.buf[a:a+4], v)
	return nil
}

// ReadBytes copies n bytes starting at a segment-relative offset.
func (m *Memory) ReadBytes(seg ID, addr uint32, n uint32) ([]byte, error) {
	if err := m.checkRange(seg, addr, n, "read"); err != nil {
		return nil, err
	}
	a := m.abs(seg, addr)
	out := make([]byte, n)
	copy(out, m.buf[a:a+n])
	return out, nil
}

// WriteBytes copies p into the segment at a segment-relative offset.
func (m *Memory) WriteBytes(seg ID, addr uint32, p []byte) error {
	if err := m.checkRange(seg, addr, uint32(len(p)), "write"); err != nil {
		return err
	}
	a := m.abs(seg, addr)
	copy(m.buf[a:a+uint32(len(p))], p)
	return nil
}
