package main

import (
	"github.com/jcorbin/tacitus/internal/segment"
)

// digest is the append-only, deduplicating string store backing the STRING
// segment (spec §4.3). It grounds the teacher's core.go `symbols` type
// (name interning with a reverse map), adapted so the strings are actually
// materialized as length-prefixed bytes in the physical STRING segment
// rather than held only in a Go []string.
type digest struct {
	mem    *segment.Memory
	end    uint32            // next free offset in the STRING segment
	byText map[string]uint16 // reverse index: text -> id
	offs   []uint32          // id-1 -> offset of its length-prefixed record
}

func newDigest(mem *segment.Memory) *digest {
	return &digest{mem: mem, byText: make(map[string]uint16)}
}

// maxInlineLen is the largest string length representable by this digest's
// single-byte length prefix.
const maxInlineLen = 255

// Intern returns the stable id for s, appending it to the STRING segment if
// not already present.
func (d *digest) Intern(s string) (uint16, error) {
	if id, ok := d.byText[s]; ok {
		return id, nil
	}
	if len(s) > maxInlineLen {
		return 0, StringSegmentFullError{}
	}
	need := uint32(1 + len(s))
	if d.end+need > d.mem.Size(segment.String) {
		return 0, StringSegmentFullError{}
	}
	off := d.end
	if err := d.mem.WriteByte(segment.String, off, byte(len(s))); err != nil {
		return 0, err
	}
	if err := d.mem.WriteBytes(segment.String, off+1, []byte(s)); err != nil {
		return 0, err
	}
	d.end += need

	id := uint16(len(d.offs) + 1)
	d.offs = append(d.offs, off)
	d.byText[s] = id
	return id, nil
}

// Lookup returns the string for a digest id, or an error if the id was
// never issued by Intern.
func (d *digest) Lookup(id uint16) (string, error) {
	if id == 0 || int(id) > len(d.offs) {
		return "", InvalidStringIDError{ID: id}
	}
	off := d.offs[id-1]
	n, err := d.mem.ReadByte(segment.String, off)
	if err != nil {
		return "", err
	}
	b, err := d.mem.ReadBytes(segment.String, off+1, uint32(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MustLookup returns the string for id, or "" if unknown; used by display
// paths (dumper, error rendering) where a bad id should degrade gracefully
// rather than propagate.
func (d *digest) MustLookup(id uint16) string {
	s, err := d.Lookup(id)
	if err != nil {
		return ""
	}
	return s
}
