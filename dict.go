package main

import (
	"github.com/jcorbin/tacitus/internal/segment"
)

// dictKind distinguishes a builtin-opcode binding from a bytecode-address
// binding (spec §3 "Symbol dictionary", §4.4).
type dictKind uint8

const (
	dictBuiltin dictKind = 0
	dictCode    dictKind = 1
)

const (
	dictEntrySize  = 12
	noPrevious     = 0xFFFFFFFF
	flagImmediate  = 1 << 0
)

// dict is the symbol dictionary: a singly-linked chain of entries living in
// the GLOBAL segment (spec §3, §4.4), grounded in the teacher's
// compileHeader/lookup/forget chaining idiom (internals.go), generalized
// from an inline-in-code-segment chain to a dedicated GLOBAL segment and
// from "pointer to a run/compile opcode pair" to an explicit kind+value
// pair that unifies builtins and user code under one call protocol
// (spec §1 item 4).
type dict struct {
	mem    *segment.Memory
	digest *digest

	head uint32 // GLOBAL-relative offset of the most recent entry, noPrevious if empty
	end  uint32 // next free offset in GLOBAL
}

func newDict(mem *segment.Memory, dg *digest) *dict {
	return &dict{mem: mem, digest: dg, head: noPrevious}
}

// Entry is a resolved dictionary binding.
type Entry struct {
	Addr      uint32
	Name      string
	Kind      dictKind
	Value     uint32
	Immediate bool
}

// Mark is an opaque handle for Forget, capturing the dictionary head and
// the global-segment fill point at the time it was taken; the string
// digest's extent is not captured.
type Mark struct {
	head uint32
	end  uint32
}

func (d *dict) Mark() Mark { return Mark{head: d.head, end: d.end} }

// Forget restores the dictionary to a previously recorded Mark, discarding
// every entry defined since. Digest entries are left in place: string ids
// are permanent for the VM's lifetime per spec §4.3, even if the word that
// used one is forgotten.
func (d *dict) Forget(m Mark) {
	d.head = m.head
	d.end = m.end
}

func (d *dict) defineRaw(name string, kind dictKind, value uint32, immediate bool) (Entry, error) {
	id, err := d.digest.Intern(name)
	if err != nil {
		return Entry{}, err
	}
	if d.end+dictEntrySize > d.mem.Size(segment.Global) {
		return Entry{}, DictionaryFullError{}
	}
	addr := d.end
	flags := uint8(0)
	if immediate {
		flags = flagImmediate
	}
	if err := d.mem.WriteCell(segment.Global, addr, d.head); err != nil {
		return Entry{}, err
	}
	if err := d.mem.WriteU16(segment.Global, addr+4, id); err != nil {
		return Entry{}, err
	}
	if err := d.mem.WriteByte(segment.Global, addr+6, uint8(kind)); err != nil {
		return Entry{}, err
	}
	if err := d.mem.WriteByte(segment.Global, addr+7, flags); err != nil {
		return Entry{}, err
	}
	if err := d.mem.WriteCell(segment.Global, addr+8, value); err != nil {
		return Entry{}, err
	}
	d.head = addr
	d.end += dictEntrySize
	return Entry{Addr: addr, Name: name, Kind: kind, Value: value, Immediate: immediate}, nil
}

// DefineBuiltin binds name to a built-in opcode.
func (d *dict) DefineBuiltin(name string, op Opcode, immediate bool) (Entry, error) {
	return d.defineRaw(name, dictBuiltin, uint32(op), immediate)
}

// DefineCode binds name to a bytecode address.
func (d *dict) DefineCode(name string, addr uint32, immediate bool) (Entry, error) {
	return d.defineRaw(name, dictCode, addr, immediate)
}

func (d *dict) readEntry(addr uint32) (Entry, error) {
	prev, err := d.mem.ReadCell(segment.Global, addr)
	if err != nil {
		return Entry{}, err
	}
	nameID, err := d.mem.ReadU16(segment.Global, addr+4)
	if err != nil {
		return Entry{}, err
	}
	kindByte, err := d.mem.ReadByte(segment.Global, addr+6)
	if err != nil {
		return Entry{}, err
	}
	flags, err := d.mem.ReadByte(segment.Global, addr+7)
	if err != nil {
		return Entry{}, err
	}
	value, err := d.mem.ReadCell(segment.Global, addr+8)
	if err != nil {
		return Entry{}, err
	}
	_ = prev
	name, _ := d.digest.Lookup(nameID)
	return Entry{
		Addr:      addr,
		Name:      name,
		Kind:      dictKind(kindByte),
		Value:     value,
		Immediate: flags&flagImmediate != 0,
	}, nil
}

func (d *dict) prevOf(addr uint32) (uint32, error) {
	return d.mem.ReadCell(segment.Global, addr)
}

// Lookup performs a most-recent-wins search by name.
func (d *dict) Lookup(name string) (Entry, bool, error) {
	for at := d.head; at != noPrevious; {
		e, err := d.readEntry(at)
		if err != nil {
			return Entry{}, false, err
		}
		if e.Name == name {
			return e, true, nil
		}
		prev, err := d.prevOf(at)
		if err != nil {
			return Entry{}, false, err
		}
		at = prev
	}
	return Entry{}, false, nil
}

// WordContaining finds the most recently defined code word whose body
// contains addr, used by the dumper and error traces to render "word+offset"
// labels instead of bare addresses. Code addresses are assigned in
// monotonically increasing order as words are compiled, and the dictionary
// chain walks newest (highest address) to oldest (lowest address), so the
// first CODE entry encountered with Value <= addr is the innermost
// enclosing word.
func (d *dict) WordContaining(addr uint32) (Entry, uint32, bool) {
	for at := d.head; at != noPrevious; {
		e, err := d.readEntry(at)
		if err != nil {
			return Entry{}, 0, false
		}
		if e.Kind == dictCode && e.Value <= addr {
			return e, addr - e.Value, true
		}
		prev, err := d.prevOf(at)
		if err != nil {
			return Entry{}, 0, false
		}
		at = prev
	}
	return Entry{}, 0, false
}
