package main

import (
	"strings"

	"github.com/jcorbin/tacitus/internal/segment"
)

// compiler is the single-pass parser+compiler (spec §4.10): it reads
// tokens once and emits bytecode directly into the CODE segment as it
// goes, with no separate AST or intermediate representation. Grounded in
// the teacher's compile/compileHeader idiom (internals.go), generalized
// from FIRST's one-word-at-a-time interpreter loop to a real compiler that
// also threads local-variable slot allocation and forward branch patches.
//
// Local variables: a colon definition may introduce one with `local name`,
// which pops the current top of stack into a newly allocated slot. `name`
// later reads the slot; `name!` overwrites it. Quotations share the
// enclosing definition's locals (they get no prologue-reserved slots of
// their own) since they're invoked by `eval` in the caller's frame.
type compiler struct {
	vm     *VM
	locals map[string]uint16
}

func newCompiler(vm *VM) *compiler { return &compiler{vm: vm} }

func (c *compiler) emitByte(b byte) error {
	if err := c.vm.mem.WriteByte(segment.Code, c.vm.codeEnd, b); err != nil {
		return CodeSegmentFullError{}
	}
	c.vm.codeEnd++
	return nil
}

func (c *compiler) emitOp(op Opcode) error { return c.emitByte(byte(op)) }

func (c *compiler) emitU16(v uint16) error {
	if err := c.vm.mem.WriteU16(segment.Code, c.vm.codeEnd, v); err != nil {
		return CodeSegmentFullError{}
	}
	c.vm.codeEnd += 2
	return nil
}

func (c *compiler) emitCell(cell Cell) error {
	if err := c.vm.mem.WriteCell(segment.Code, c.vm.codeEnd, uint32(cell)); err != nil {
		return CodeSegmentFullError{}
	}
	c.vm.codeEnd += 4
	return nil
}

func (c *compiler) emitLiteral(cell Cell) error {
	if err := c.emitOp(opPushLiteral); err != nil {
		return err
	}
	return c.emitCell(cell)
}

// emitBranch emits a branch opcode with a placeholder offset, returning
// the address of the two offset bytes to patch once the target is known.
func (c *compiler) emitBranch(op Opcode) (uint32, error) {
	if err := c.emitOp(op); err != nil {
		return 0, err
	}
	at := c.vm.codeEnd
	if err := c.emitU16(0); err != nil {
		return 0, err
	}
	return at, nil
}

func (c *compiler) patchBranch(placeholderAddr, targetAddr uint32) error {
	offset := int32(targetAddr) - int32(placeholderAddr+2)
	if offset < -32768 || offset > 32767 {
		return ValueRangeError{Value: int(offset), Kind: "branch-offset"}
	}
	return c.vm.mem.WriteU16(segment.Code, placeholderAddr, uint16(int16(offset)))
}

// emitCall emits either a single-byte builtin dispatch or a two-byte
// 15-bit call address, per spec §4.5's top-bit instruction convention.
func (c *compiler) emitCall(e Entry) error {
	switch e.Kind {
	case dictBuiltin:
		return c.emitOp(Opcode(e.Value))
	case dictCode:
		if e.Value > 0x7FFF {
			return ValueRangeError{Value: int(e.Value), Kind: "call-address"}
		}
		if err := c.emitByte(0x80 | byte(e.Value>>8)); err != nil {
			return err
		}
		return c.emitByte(byte(e.Value))
	default:
		return CompileError{Message: "unknown dictionary entry kind for " + e.Name}
	}
}

// Compile parses and compiles one chunk of top-level source, appending to
// the code segment, and returns the address range to execute: [start,
// end). A chunk containing only colon definitions still yields a
// non-empty range: it holds each definition's body together with the
// branch that jumps over it, so running the range defines nothing new
// at run time and executes none of the bodies.
func (c *compiler) Compile(name, src string) (start, end uint32, err error) {
	l := newLexer(name, src)
	start = c.vm.codeEnd
	if _, err := c.compileBody(l, nil); err != nil {
		return 0, 0, err
	}
	return start, c.vm.codeEnd, nil
}

// compileBody compiles tokens until EOF or a token kind in terminators,
// returning which terminator was hit (tokEOF if none supplied matched).
func (c *compiler) compileBody(l *lexer, terminators map[tokenKind]bool) (tokenKind, error) {
	for {
		tok, err := l.next()
		if err != nil {
			return tokEOF, err
		}
		if tok.kind == tokEOF {
			return tokEOF, nil
		}
		if terminators[tok.kind] {
			return tok.kind, nil
		}
		if err := c.compileToken(l, tok); err != nil {
			return tokEOF, err
		}
	}
}

func (c *compiler) compileToken(l *lexer, tok token) error {
	switch tok.kind {
	case tokNumber:
		return c.emitLiteral(EncodeNumber(tok.num))
	case tokString:
		id, err := c.vm.digest.Intern(tok.text)
		if err != nil {
			return err
		}
		return c.emitLiteral(NewString(id))
	case tokLParen:
		return c.emitOp(opMark)
	case tokRParen:
		return c.emitOp(opEndList)
	case tokRBrace:
		return ParseError{Pos: tok.pos, Message: "unexpected }"}
	case tokSemicolon:
		return ParseError{Pos: tok.pos, Message: "unexpected ; outside a colon definition"}
	case tokLBrace:
		return c.compileQuotation(l)
	case tokColon:
		return c.compileColonDef(l)
	case tokWord:
		return c.compileWord(l, tok)
	default:
		return ParseError{Pos: tok.pos, Message: "unexpected token"}
	}
}

// compileQuotation emits a branch-over-body, the body itself ending in
// exit, then (at the position execution resumes after the branch) a
// literal CODE reference to the body's start (spec §4.10 "{ ... }").
func (c *compiler) compileQuotation(l *lexer) error {
	branchAt, err := c.emitBranch(opBranch)
	if err != nil {
		return err
	}
	bodyStart := c.vm.codeEnd
	if err := c.emitOp(opPrologue); err != nil {
		return err
	}
	if err := c.emitByte(0); err != nil {
		return err
	}
	kind, err := c.compileBody(l, map[tokenKind]bool{tokRBrace: true})
	if err != nil {
		return err
	}
	if kind != tokRBrace {
		return ParseError{Message: "unterminated quotation, expected }"}
	}
	if err := c.emitOp(opExit); err != nil {
		return err
	}
	if err := c.patchBranch(branchAt, c.vm.codeEnd); err != nil {
		return err
	}
	if bodyStart > 0xFFFF {
		return ValueRangeError{Value: int(bodyStart), Kind: "code-address"}
	}
	return c.emitLiteral(NewCode(uint16(bodyStart)))
}

// compileColonDef compiles `: name ... ;` (spec §4.10): a branch-over-body
// wrapping a prologue/body/exit, bound in the dictionary under name. The
// prologue's local-reservation count is patched once the body's `local`
// declarations are all seen.
func (c *compiler) compileColonDef(l *lexer) error {
	nameTok, err := l.next()
	if err != nil {
		return err
	}
	if nameTok.kind != tokWord {
		return ParseError{Pos: nameTok.pos, Message: "expected a name after :"}
	}

	branchAt, err := c.emitBranch(opBranch)
	if err != nil {
		return err
	}
	bodyStart := c.vm.codeEnd
	if err := c.emitOp(opPrologue); err != nil {
		return err
	}
	countAt := c.vm.codeEnd
	if err := c.emitByte(0); err != nil {
		return err
	}

	outerLocals := c.locals
	c.locals = make(map[string]uint16)
	kind, err := c.compileBody(l, map[tokenKind]bool{tokSemicolon: true})
	localCount := len(c.locals)
	c.locals = outerLocals
	if err != nil {
		return err
	}
	if kind != tokSemicolon {
		return ParseError{Message: "unterminated definition of " + nameTok.text + ", expected ;"}
	}
	if localCount > 255 {
		return ValueRangeError{Value: localCount, Kind: "local-count"}
	}
	if err := c.vm.mem.WriteByte(segment.Code, countAt, byte(localCount)); err != nil {
		return err
	}
	if err := c.emitOp(opExit); err != nil {
		return err
	}
	if err := c.patchBranch(branchAt, c.vm.codeEnd); err != nil {
		return err
	}
	_, err = c.vm.dict.DefineCode(nameTok.text, bodyStart, false)
	return err
}

func (c *compiler) compileWord(l *lexer, tok token) error {
	if tok.text == "local" {
		return c.compileLocalDecl(l, tok)
	}
	if c.locals != nil {
		if slot, ok := c.locals[tok.text]; ok {
			if err := c.emitOp(opPushLocal); err != nil {
				return err
			}
			return c.emitByte(byte(slot))
		}
		if strings.HasSuffix(tok.text, "!") {
			if slot, ok := c.locals[strings.TrimSuffix(tok.text, "!")]; ok {
				if err := c.emitOp(opStoreLocal); err != nil {
					return err
				}
				return c.emitByte(byte(slot))
			}
		}
	}
	e, ok, err := c.vm.dict.Lookup(tok.text)
	if err != nil {
		return err
	}
	if !ok {
		return CompileError{Pos: tok.pos, Message: "undefined word: " + tok.text}
	}
	return c.emitCall(e)
}

// compileLocalDecl handles `local name`: it pops the current top of stack
// into a freshly allocated slot, emitted immediately as an opStoreLocal.
func (c *compiler) compileLocalDecl(l *lexer, tok token) error {
	if c.locals == nil {
		return ParseError{Pos: tok.pos, Message: "local declared outside a colon definition"}
	}
	nameTok, err := l.next()
	if err != nil {
		return err
	}
	if nameTok.kind != tokWord {
		return ParseError{Pos: nameTok.pos, Message: "local requires a name"}
	}
	if _, exists := c.locals[nameTok.text]; exists {
		return CompileError{Pos: nameTok.pos, Message: "local redeclared: " + nameTok.text}
	}
	slot := uint16(len(c.locals))
	c.locals[nameTok.text] = slot
	if err := c.emitOp(opStoreLocal); err != nil {
		return err
	}
	return c.emitByte(byte(slot))
}
