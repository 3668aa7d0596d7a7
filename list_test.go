package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushInt(t *testing.T, vm *VM, v int) {
	t.Helper()
	c, err := NewInteger(v)
	require.NoError(t, err)
	require.NoError(t, vm.pushData(c))
}

func buildList(t *testing.T, vm *VM, vals ...int) {
	t.Helper()
	for _, v := range vals {
		pushInt(t, vm, v)
	}
	hdr, err := NewList(len(vals))
	require.NoError(t, err)
	require.NoError(t, vm.pushData(hdr))
}

func TestBuiltinAppendGrowsTail(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 1, 2, 3)
	pushInt(t, vm, 4)
	require.NoError(t, vm.builtinAppend())

	hdr, err := vm.peekData(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), hdr.Payload())

	require.NoError(t, vm.builtinHead())
	head, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(3), head.Int(), "append adds at the tail, head stays unchanged")
}

func TestBuiltinConcatOrdersAThenB(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 1, 2)
	buildList(t, vm, 3, 4)
	require.NoError(t, vm.builtinConcat())

	hdr, err := vm.peekData(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), hdr.Payload())
}

func TestBuiltinReverseFlipsOrder(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 1, 2, 3)
	require.NoError(t, vm.builtinHead())
	headBefore, err := vm.popData()
	require.NoError(t, err)

	require.NoError(t, vm.builtinReverse())
	require.NoError(t, vm.builtinHead())
	headAfter, err := vm.popData()
	require.NoError(t, err)

	assert.NotEqual(t, headBefore.Int(), headAfter.Int())
}

// buildMapList pushes a map-list's `key value` pairs in source order (so
// each pair's value ends up one physical slot closer to the header than
// its key, per the reverse-list layout) and pushes the header.
func buildMapList(t *testing.T, vm *VM, pairs ...Cell) {
	t.Helper()
	for _, c := range pairs {
		require.NoError(t, vm.pushData(c))
	}
	hdr, err := NewList(len(pairs))
	require.NoError(t, err)
	require.NoError(t, vm.pushData(hdr))
}

func TestBuiltinFindLocatesValueByKey(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	aKey, bKey, cKey := NewBuiltin(opAdd), NewBuiltin(opSub), NewBuiltin(opMul)
	valA, err := NewInteger(1)
	require.NoError(t, err)
	valB, err := NewInteger(2)
	require.NoError(t, err)
	valC, err := NewInteger(3)
	require.NoError(t, err)

	buildMapList(t, vm, aKey, valA, bKey, valB, cKey, valC)
	require.NoError(t, vm.pushData(bKey))
	require.NoError(t, vm.builtinFind())

	idx, err := vm.popData()
	require.NoError(t, err)
	require.Equal(t, TagInteger, idx.Tag())

	require.NoError(t, vm.pushData(idx))
	require.NoError(t, vm.builtinFetch())
	v, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(2), v.Int(), "find must locate b's value (2), not b's own key slot")
}

func TestBuiltinFindMissFallsBackToDefault(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	defaultID, err := vm.digest.Intern("default")
	require.NoError(t, err)
	defaultKey := NewString(defaultID)
	aKey := NewBuiltin(opAdd)
	valA, err := NewInteger(1)
	require.NoError(t, err)
	valDefault, err := NewInteger(99)
	require.NoError(t, err)

	buildMapList(t, vm, aKey, valA, defaultKey, valDefault)
	require.NoError(t, vm.pushData(NewBuiltin(opSub))) // a key absent from the map
	require.NoError(t, vm.builtinFind())

	idx, err := vm.popData()
	require.NoError(t, err)
	require.False(t, idx.IsNil(), "a miss with a `default` entry present reads back its value, not NIL")

	require.NoError(t, vm.pushData(idx))
	require.NoError(t, vm.builtinFetch())
	v, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, int16(99), v.Int())
}

func TestBuiltinFindMissReturnsNilWithoutDefault(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	aKey := NewBuiltin(opAdd)
	valA, err := NewInteger(1)
	require.NoError(t, err)

	buildMapList(t, vm, aKey, valA)
	require.NoError(t, vm.pushData(NewBuiltin(opSub)))
	require.NoError(t, vm.builtinFind())

	v, err := vm.popData()
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

// lessComparator compiles `{ < }` as a standalone comparator quotation,
// leaving only its CODE cell on the stack.
func lessComparator(t *testing.T, vm *VM) Cell {
	t.Helper()
	require.NoError(t, vm.Eval(context.Background(), "test", "{ < }"))
	c, err := vm.popData()
	require.NoError(t, err)
	require.Equal(t, TagCode, c.Tag())
	return c
}

func TestBuiltinSortThenBFindAgree(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 30, 10, 20)
	require.NoError(t, vm.pushData(lessComparator(t, vm)))
	require.NoError(t, vm.builtinSort())

	pushInt(t, vm, 20)
	require.NoError(t, vm.pushData(lessComparator(t, vm)))
	require.NoError(t, vm.builtinBFind())
	idx, err := vm.popData()
	require.NoError(t, err)
	assert.False(t, idx.IsNil(), "bfind must find a value sort just placed in its assumed order")
}

func TestBuiltinHIndexThenHFind(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	buildList(t, vm, 5, 15, 25)
	require.NoError(t, vm.builtinHIndex())
	handle, err := vm.popData()
	require.NoError(t, err)

	require.NoError(t, vm.pushData(handle))
	pushInt(t, vm, 15)
	require.NoError(t, vm.builtinHFind())

	idx, err := vm.popData()
	require.NoError(t, err)
	require.False(t, idx.IsNil())
	assert.Equal(t, int16(1), idx.Int())
}
