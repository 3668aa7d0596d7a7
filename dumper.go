package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jcorbin/tacitus/internal/segment"
)

// RenderCell renders a single cell without access to the string digest or
// dictionary: tagged values with external references (STRING, CODE) show
// their raw id/address rather than resolved text or a word name. Used by
// RuntimeError, which must remain renderable even after the VM that raised
// it has gone away.
func RenderCell(c Cell) string {
	if c.IsNumber() {
		return strconv.FormatFloat(float64(c.Float()), 'g', -1, 32)
	}
	tag, payload := c.Decode()
	switch tag {
	case TagInteger:
		return strconv.Itoa(int(c.Int()))
	case TagString:
		return fmt.Sprintf("STRING#%d", payload)
	case TagList:
		return fmt.Sprintf("LIST(%d)", payload)
	case TagCode:
		return fmt.Sprintf("CODE@%d", payload)
	case TagLocal:
		return fmt.Sprintf("LOCAL#%d", payload)
	case TagBuiltin:
		if name, ok := builtinNames[Opcode(payload)]; ok {
			return name
		}
		return fmt.Sprintf("BUILTIN#%d", payload)
	default:
		return fmt.Sprintf("TAG(%d)#%d", tag, payload)
	}
}

// RenderCells renders a stack snapshot bottom-to-top, as a space-separated
// sequence, used by RuntimeError's error text.
func RenderCells(cells []Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = RenderCell(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RenderCell resolves a STRING cell's text and a CODE cell's enclosing word
// name using this VM's digest and dictionary, falling back to the
// digest-agnostic rendering above for everything else.
func (vm *VM) RenderCell(c Cell) string {
	tag, payload := c.Decode()
	switch tag {
	case TagString:
		if s, err := vm.digest.Lookup(payload); err == nil {
			return strconv.Quote(s)
		}
	case TagCode:
		if e, off, ok := vm.dict.WordContaining(uint32(payload)); ok {
			if off == 0 {
				return e.Name
			}
			return fmt.Sprintf("%s+%d", e.Name, off)
		}
	}
	return RenderCell(c)
}

// DataStackSnapshot copies the live data stack bottom-to-top, for
// RuntimeError and for Dump.
func (vm *VM) DataStackSnapshot() []Cell {
	n := vm.sp / cellSize
	out := make([]Cell, n)
	for i := uint32(0); i < n; i++ {
		v, err := vm.mem.ReadCell(segment.Stack, i*cellSize)
		if err != nil {
			break
		}
		out[i] = Cell(v)
	}
	return out
}

// Dump renders the data stack as a single human-readable line, resolving
// STRING and CODE references through this VM's digest/dictionary.
func (vm *VM) Dump() string {
	parts := make([]string, 0, vm.sp/cellSize)
	for _, c := range vm.DataStackSnapshot() {
		parts = append(parts, vm.RenderCell(c))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
