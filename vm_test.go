package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalOK(t *testing.T, vm *VM, src string) {
	t.Helper()
	require.NoError(t, vm.Eval(context.Background(), "test", src))
}

func TestEvalArithmetic(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "2 3 + 4 *")
	top, err := vm.peekData(0)
	require.NoError(t, err)
	assert.Equal(t, float32(20), top.Float())
}

func TestEvalStackManipulation(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "1 2 swap")
	b, err := vm.popData()
	require.NoError(t, err)
	a, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(1), b.Float())
	assert.Equal(t, float32(2), a.Float())
}

func TestEvalConsUnconsRoundTrip(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "( 1 2 3 ) 4 cons")
	hdr, err := vm.peekData(0)
	require.NoError(t, err)
	require.Equal(t, TagList, hdr.Tag())
	assert.Equal(t, uint16(4), hdr.Payload())

	evalOK(t, vm, "uncons")
	head, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(4), head.Float())

	tail, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), tail.Payload())
}

func TestEvalColonDefinitionWithLocals(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, ": square local x x x * ;")
	evalOK(t, vm, "5 square")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(25), top.Float())
}

func TestEvalQuotationEval(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "3 { 1 + } eval")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(4), top.Float())
}

func TestEvalIfElse(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "1 { 10 } { 20 } if-else")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(10), top.Float())

	evalOK(t, vm, "0 { 10 } { 20 } if-else")
	top, err = vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(20), top.Float())
}

func TestEvalPrintWritesToOutput(t *testing.T) {
	var buf strings.Builder
	vm, err := New(WithOutput(&buf))
	require.NoError(t, err)

	evalOK(t, vm, `"hi" raw-print`)
	assert.Equal(t, "hi", buf.String())
}

func TestEvalUndefinedWordFails(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	err = vm.Eval(context.Background(), "test", "nonesuch")
	require.Error(t, err)
}

func TestEvalStepLimitAborts(t *testing.T) {
	vm, err := New(WithMaxSteps(3))
	require.NoError(t, err)

	err = vm.Eval(context.Background(), "test", "1 1 1 1 1 1 1 1 1 1")
	require.Error(t, err)
}

func TestEvalGetSetOnList(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "( 10 20 30 ) { 1 } get")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(20), top.Float())

	evalOK(t, vm, "( 10 20 30 ) { 1 } 99 set")
	hdr, err := vm.peekData(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), hdr.Payload())

	evalOK(t, vm, "{ 1 } get")
	got, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(99), got.Float())
}

func TestEvalGetWalksNestedPath(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "( ( 10 20 ) ( 30 40 ) ) { 1 0 } get")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.Equal(t, float32(30), top.Float())
}

func TestEvalGetOutOfRangeStepReadsNil(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "( 10 20 30 ) { 9 } get")
	top, err := vm.popData()
	require.NoError(t, err)
	assert.True(t, top.IsNil())
}

func TestEvalLengthSkipsNestedHeader(t *testing.T) {
	vm, err := New()
	require.NoError(t, err)

	evalOK(t, vm, "( 1 ( 2 3 ) 4 ) slots")
	slots, err := vm.popData()
	require.NoError(t, err)
	require.Equal(t, TagInteger, slots.Tag())
	assert.Equal(t, int16(5), slots.Int())

	evalOK(t, vm, "( 1 ( 2 3 ) 4 ) length")
	length, err := vm.popData()
	require.NoError(t, err)
	require.Equal(t, TagInteger, length.Tag())
	assert.Equal(t, int16(3), length.Int())
}
