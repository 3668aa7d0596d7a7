package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quotationCell compiles src (typically a `{ ... }` quotation literal) and
// returns the single CODE cell it leaves on the stack.
func quotationCell(t *testing.T, vm *VM, src string) Cell {
	t.Helper()
	require.NoError(t, vm.Eval(context.Background(), "test", src))
	c, err := vm.popData()
	require.NoError(t, err)
	require.Equal(t, TagCode, c.Tag())
	return c
}

func TestBuiltinElemNegativeWraparound(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 10, 20, 30)
	pushInt(t, vm, -1)
	require.NoError(t, vm.builtinElem())

	// index -1 wraps to the last slot (n-1), the list's tail: the first
	// value pushed by buildList ends up furthest from the header.
	v, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(10), v.Int())
}

func TestBuiltinSlotRejectsNegative(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 10, 20, 30)
	pushInt(t, vm, -1)
	err = vm.builtinSlot()
	require.Error(t, err)
	var rangeErr ValueRangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestBuiltinStoreOverwritesInPlace(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 10, 20, 30)
	pushInt(t, vm, 0)
	pushInt(t, vm, 99)
	require.NoError(t, vm.builtinStore())

	hdr, err := vm.peekData(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), hdr.Payload(), "store overwrites a slot, it never changes the slot count")

	require.NoError(t, vm.builtinHead())
	head, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(99), head.Int())
}

func TestBuiltinGetWalksNestedPath(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	require.NoError(t, vm.Eval(context.Background(), "test", "( ( 10 20 ) ( 30 40 ) )"))
	require.NoError(t, vm.pushData(quotationCell(t, vm, "{ 1 0 }")))
	require.NoError(t, vm.builtinGet())

	v, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(30), v.Float())
}

func TestBuiltinGetOutOfRangeStepReadsNil(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 10, 20, 30)
	require.NoError(t, vm.pushData(quotationCell(t, vm, "{ 9 }")))
	require.NoError(t, vm.builtinGet())

	v, err := vm.popData()
	require.NoError(t, err)
	assert.True(t, v.IsNil(), "a path segment out of range at any step reads back as NIL")
}

func TestBuiltinSetWalksNestedPath(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	require.NoError(t, vm.Eval(context.Background(), "test", "( ( 10 20 ) ( 30 40 ) )"))
	require.NoError(t, vm.pushData(quotationCell(t, vm, "{ 1 0 }")))
	pushInt(t, vm, 99)
	require.NoError(t, vm.builtinSet())

	require.NoError(t, vm.pushData(quotationCell(t, vm, "{ 1 0 }")))
	require.NoError(t, vm.builtinGet())
	v, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(99), v.Int())
}
