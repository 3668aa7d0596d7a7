package main

// Opcode is a 7-bit built-in operation identifier (spec §4.5, §4.6): the
// low 7 bits of an instruction byte whose top bit is clear.
type Opcode uint8

// Internal instructions, never bound to a dictionary name, emitted only by
// the compiler (spec §4.5 "Literals", "Branches", "Local access";
// §4.10 "prologue/epilogue").
const (
	opPushLiteral Opcode = iota // followed by 4 raw bytes: a tagged cell
	opBranch                   // followed by signed 16-bit relative offset
	opBranchZero                // same, pops condition first
	opPushLocal                 // followed by 1 byte: local slot index
	opStoreLocal                 // followed by 1 byte: local slot index
	opPrologue                   // followed by 1 byte: locals to reserve
	opExit
	opMark    // "(" -- push current data SP onto the return stack as a mark
	opEndList // ")" -- pop the mark, compute slot count, push a LIST header

	opFirstNamed
)

// Named built-ins (spec §4.6), in dictionary-definition order.
const (
	// Stack manipulation.
	opDup Opcode = iota + opFirstNamed
	opDrop
	opSwap
	opOver
	opRot
	opNRot
	opNip
	opTuck
	opPick
	opRoll

	// Arithmetic.
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opNeg
	opAbs
	opMin
	opMax
	opPow
	opSqrt
	opExp
	opLn
	opSin
	opCos
	opTan

	// Comparison/logic.
	opEq
	opNe
	opLt
	opLe
	opGt
	opGe
	opAnd
	opOr
	opNot

	// Control.
	opEval
	opIfElse
	opAbort

	// List construction and structural.
	opEnlist
	opPack
	opUnpack
	opCons
	opUncons
	opHead
	opTail
	opAppend
	opConcat
	opReverse
	opLength
	opSlots

	// List access.
	opSlot
	opElem
	opFetch
	opStore
	opGet
	opSet
	opSort
	opFind
	opBFind
	opHIndex
	opHFind

	// I/O.
	opPrint
	opRawPrint
	opDot

	opCount
)

func init() {
	if opCount > 128 {
		panic("too many opcodes for a 7-bit opcode space")
	}
}

// builtinNames maps every named opcode to its surface dictionary spelling.
// opPushLiteral..opEndList have no dictionary name: they're compiler-internal.
var builtinNames = map[Opcode]string{
	opDup: "dup", opDrop: "drop", opSwap: "swap", opOver: "over",
	opRot: "rot", opNRot: "-rot", opNip: "nip", opTuck: "tuck",
	opPick: "pick", opRoll: "roll",

	opAdd: "+", opSub: "-", opMul: "*", opDiv: "/", opMod: "mod",
	opNeg: "neg", opAbs: "abs", opMin: "min", opMax: "max", opPow: "^",
	opSqrt: "sqrt", opExp: "exp", opLn: "ln",
	opSin: "sin", opCos: "cos", opTan: "tan",

	opEq: "=", opNe: "!=", opLt: "<", opLe: "<=", opGt: ">", opGe: ">=",
	opAnd: "and", opOr: "or", opNot: "not",

	opEval: "eval", opIfElse: "if-else", opAbort: "abort",

	opEnlist: "enlist", opPack: "pack", opUnpack: "unpack",
	opCons: "cons", opUncons: "uncons", opHead: "head", opTail: "tail",
	opAppend: "append", opConcat: "concat", opReverse: "reverse",
	opLength: "length", opSlots: "slots",

	opSlot: "slot", opElem: "elem", opFetch: "fetch", opStore: "store",
	opGet: "get", opSet: "set", opSort: "sort", opFind: "find",
	opBFind: "bfind", opHIndex: "hindex", opHFind: "hfind",

	opPrint: "print", opRawPrint: "raw-print", opDot: ".",
}

// builtinUnicodeAliases defines the Unicode comparison-operator spellings
// spec §4.6 writes literally ("≠ ≤ ≥"); both the ASCII and Unicode spelling
// are bound in the bootstrap dictionary to the same opcode.
var builtinUnicodeAliases = map[Opcode]string{
	opNe: "≠",
	opLe: "≤",
	opGe: "≥",
}
