package main

import (
	"math"

	"github.com/jcorbin/tacitus/internal/segment"
)

// installBuiltins binds every named opcode (and its aliases) into a fresh
// dictionary, the bootstrap step every VM performs once at construction
// (spec §4.4 "the dictionary starts populated with the built-in words").
func installBuiltins(d *dict) error {
	for op := opFirstNamed; op < opCount; op++ {
		name, ok := builtinNames[op]
		if !ok {
			continue
		}
		if _, err := d.DefineBuiltin(name, op, false); err != nil {
			return err
		}
	}
	for op, alias := range builtinUnicodeAliases {
		if _, err := d.DefineBuiltin(alias, op, false); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) popNumber(op string) (float32, error) {
	c, err := vm.popData()
	if err != nil {
		return 0, err
	}
	if c.Tag() == TagInteger {
		return float32(c.Int()), nil
	}
	if !c.IsNumber() {
		return 0, TypeError{Op: op, Expected: "NUMBER", Got: c.Tag()}
	}
	return c.Float(), nil
}

func (vm *VM) popTwoNumbers(op string) (a, b float32, err error) {
	if b, err = vm.popNumber(op); err != nil {
		return 0, 0, err
	}
	if a, err = vm.popNumber(op); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (vm *VM) pushNumber(f float32) error { return vm.pushData(EncodeNumber(f)) }

func binaryNumeric(op string, fn func(a, b float32) float32) func(vm *VM) error {
	return func(vm *VM) error {
		a, b, err := vm.popTwoNumbers(op)
		if err != nil {
			return err
		}
		return vm.pushNumber(fn(a, b))
	}
}

func unaryNumeric(op string, fn func(a float32) float32) func(vm *VM) error {
	return func(vm *VM) error {
		a, err := vm.popNumber(op)
		if err != nil {
			return err
		}
		return vm.pushNumber(fn(a))
	}
}

func comparisonNumeric(op string, fn func(a, b float32) bool) func(vm *VM) error {
	return func(vm *VM) error {
		a, b, err := vm.popTwoNumbers(op)
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(fn(a, b)))
	}
}

// dispatchValue runs a BUILTIN cell's opcode directly or, for a CODE cell,
// performs the shared call protocol (push return address, jump), shared by
// eval and if-else (spec §4.6 "eval").
func (vm *VM) dispatchValue(c Cell) error {
	switch c.Tag() {
	case TagBuiltin:
		h := handlers[Opcode(c.Payload())]
		if h == nil {
			return UndefinedWordError{Name: "<unbound opcode>"}
		}
		return h(vm)
	case TagCode:
		return vm.call(uint32(c.Payload()))
	default:
		return TypeError{Op: "eval", Expected: "CODE or BUILTIN", Got: c.Tag()}
	}
}

func init() {
	handlers[opDup] = func(vm *VM) error {
		v, err := vm.peekData(0)
		if err != nil {
			return err
		}
		return vm.pushData(v)
	}
	handlers[opDrop] = func(vm *VM) error {
		_, err := vm.popData()
		return err
	}
	handlers[opSwap] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		if err := vm.pushData(b); err != nil {
			return err
		}
		return vm.pushData(a)
	}
	handlers[opOver] = func(vm *VM) error {
		v, err := vm.peekData(1)
		if err != nil {
			return err
		}
		return vm.pushData(v)
	}
	handlers[opRot] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		if err := vm.pushData(b); err != nil {
			return err
		}
		if err := vm.pushData(c); err != nil {
			return err
		}
		return vm.pushData(a)
	}
	handlers[opNRot] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		if err := vm.pushData(c); err != nil {
			return err
		}
		if err := vm.pushData(a); err != nil {
			return err
		}
		return vm.pushData(b)
	}
	handlers[opNip] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		if _, err := vm.popData(); err != nil {
			return err
		}
		return vm.pushData(b)
	}
	handlers[opTuck] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		if err := vm.pushData(b); err != nil {
			return err
		}
		if err := vm.pushData(a); err != nil {
			return err
		}
		return vm.pushData(b)
	}
	handlers[opPick] = func(vm *VM) error {
		nCell, err := vm.popData()
		if err != nil {
			return err
		}
		v, err := vm.peekData(uint32(nCell.Int()))
		if err != nil {
			return err
		}
		return vm.pushData(v)
	}
	handlers[opRoll] = func(vm *VM) error {
		nCell, err := vm.popData()
		if err != nil {
			return err
		}
		n := int(nCell.Int())
		if n < 0 {
			return ValueRangeError{Value: n, Kind: "roll-depth"}
		}
		v, err := vm.peekData(uint32(n))
		if err != nil {
			return err
		}
		base := vm.sp - uint32(n+1)*cellSize
		if err := vm.shiftDown(base, uint32(n)); err != nil {
			return err
		}
		return vm.mem.WriteCell(segment.Stack, vm.sp-cellSize, uint32(v))
	}

	handlers[opAdd] = binaryNumeric("+", func(a, b float32) float32 { return a + b })
	handlers[opSub] = binaryNumeric("-", func(a, b float32) float32 { return a - b })
	handlers[opMul] = binaryNumeric("*", func(a, b float32) float32 { return a * b })
	handlers[opDiv] = func(vm *VM) error {
		a, b, err := vm.popTwoNumbers("/")
		if err != nil {
			return err
		}
		if b == 0 {
			return DivByZeroError{}
		}
		return vm.pushNumber(a / b)
	}
	handlers[opMod] = func(vm *VM) error {
		a, b, err := vm.popTwoNumbers("mod")
		if err != nil {
			return err
		}
		if b == 0 {
			return DivByZeroError{}
		}
		return vm.pushNumber(float32(math.Mod(float64(a), float64(b))))
	}
	handlers[opNeg] = unaryNumeric("neg", func(a float32) float32 { return -a })
	handlers[opAbs] = unaryNumeric("abs", func(a float32) float32 { return float32(math.Abs(float64(a))) })
	handlers[opMin] = binaryNumeric("min", func(a, b float32) float32 {
		if a < b {
			return a
		}
		return b
	})
	handlers[opMax] = binaryNumeric("max", func(a, b float32) float32 {
		if a > b {
			return a
		}
		return b
	})
	handlers[opPow] = binaryNumeric("^", func(a, b float32) float32 { return float32(math.Pow(float64(a), float64(b))) })
	handlers[opSqrt] = unaryNumeric("sqrt", func(a float32) float32 { return float32(math.Sqrt(float64(a))) })
	handlers[opExp] = unaryNumeric("exp", func(a float32) float32 { return float32(math.Exp(float64(a))) })
	handlers[opLn] = unaryNumeric("ln", func(a float32) float32 { return float32(math.Log(float64(a))) })
	handlers[opSin] = unaryNumeric("sin", func(a float32) float32 { return float32(math.Sin(float64(a))) })
	handlers[opCos] = unaryNumeric("cos", func(a float32) float32 { return float32(math.Cos(float64(a))) })
	handlers[opTan] = unaryNumeric("tan", func(a float32) float32 { return float32(math.Tan(float64(a))) })

	handlers[opEq] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(cellsEqual(a, b)))
	}
	handlers[opNe] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(!cellsEqual(a, b)))
	}
	handlers[opLt] = comparisonNumeric("<", func(a, b float32) bool { return a < b })
	handlers[opLe] = comparisonNumeric("<=", func(a, b float32) bool { return a <= b })
	handlers[opGt] = comparisonNumeric(">", func(a, b float32) bool { return a > b })
	handlers[opGe] = comparisonNumeric(">=", func(a, b float32) bool { return a >= b })
	handlers[opAnd] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(a.Truthy() && b.Truthy()))
	}
	handlers[opOr] = func(vm *VM) error {
		b, err := vm.popData()
		if err != nil {
			return err
		}
		a, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(a.Truthy() || b.Truthy()))
	}
	handlers[opNot] = func(vm *VM) error {
		a, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.pushData(boolCell(!a.Truthy()))
	}

	handlers[opEval] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.dispatchValue(c)
	}
	handlers[opIfElse] = func(vm *VM) error {
		elseVal, err := vm.popData()
		if err != nil {
			return err
		}
		thenVal, err := vm.popData()
		if err != nil {
			return err
		}
		cond, err := vm.popData()
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return vm.dispatchValue(thenVal)
		}
		return vm.dispatchValue(elseVal)
	}
	handlers[opAbort] = func(vm *VM) error { return AbortError{} }

	handlers[opEnlist] = (*VM).builtinEnlist
	handlers[opPack] = (*VM).builtinPack
	handlers[opUnpack] = (*VM).builtinUnpack
	handlers[opCons] = (*VM).builtinCons
	handlers[opUncons] = (*VM).builtinUncons
	handlers[opHead] = (*VM).builtinHead
	handlers[opTail] = (*VM).builtinTail
	handlers[opAppend] = (*VM).builtinAppend
	handlers[opConcat] = (*VM).builtinConcat
	handlers[opReverse] = (*VM).builtinReverse
	handlers[opLength] = (*VM).builtinLength
	handlers[opSlots] = (*VM).builtinSlots

	handlers[opSlot] = (*VM).builtinSlot
	handlers[opElem] = (*VM).builtinElem
	handlers[opFetch] = (*VM).builtinFetch
	handlers[opStore] = (*VM).builtinStore
	handlers[opGet] = (*VM).builtinGet
	handlers[opSet] = (*VM).builtinSet
	handlers[opSort] = (*VM).builtinSort
	handlers[opFind] = (*VM).builtinFind
	handlers[opBFind] = (*VM).builtinBFind
	handlers[opHIndex] = (*VM).builtinHIndex
	handlers[opHFind] = (*VM).builtinHFind

	handlers[opPrint] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		if _, err := vm.out.Write([]byte(vm.RenderCell(c) + "\n")); err != nil {
			return err
		}
		return vm.out.Flush()
	}
	handlers[opRawPrint] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		if c.Tag() != TagString {
			return TypeError{Op: "raw-print", Expected: "STRING", Got: c.Tag()}
		}
		s, err := vm.digest.Lookup(c.Payload())
		if err != nil {
			return err
		}
		if _, err := vm.out.Write([]byte(s)); err != nil {
			return err
		}
		return vm.out.Flush()
	}
	handlers[opDot] = func(vm *VM) error {
		c, err := vm.popData()
		if err != nil {
			return err
		}
		if _, err := vm.out.Write([]byte(vm.RenderCell(c) + " ")); err != nil {
			return err
		}
		return vm.out.Flush()
	}
}

func cellsEqual(a, b Cell) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.Float() == b.Float()
	}
	return a == b
}

// shiftDown moves the n cells just above base down one cell (toward the
// bottom of the stack), overwriting the cell at base; used by roll to
// rotate a deep item to the top.
func (vm *VM) shiftDown(base, n uint32) error {
	for i := uint32(0); i < n; i++ {
		v, err := vm.mem.ReadCell(segment.Stack, base+(i+1)*cellSize)
		if err != nil {
			return err
		}
		if err := vm.mem.WriteCell(segment.Stack, base+i*cellSize, v); err != nil {
			return err
		}
	}
	return nil
}
