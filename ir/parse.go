package ir

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/oqc-community/rasqal/rerr"
)

// bitcodeMagic tags our stand-in ".bc" container: this engine does not
// implement a real LLVM bitstream reader (out of scope per spec), so
// ParseBitcode treats a ".bc" file as the same textual grammar as
// ParseText, gzip-compressed behind this magic. That is enough to make
// run_ll(text) == run_bitcode(assemble(text)) checkable end to end.
var bitcodeMagic = []byte("QIRB")

// Assemble wraps textual IR into our bitcode container, the inverse of
// ParseBitcode. Exercised by tests exercising the round-trip property.
func Assemble(text string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(bitcodeMagic)
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(text)); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseBitcode decodes our bitcode container back to text and parses it.
func ParseBitcode(data []byte) (*Module, error) {
	if len(data) < len(bitcodeMagic) || !bytes.Equal(data[:len(bitcodeMagic)], bitcodeMagic) {
		return nil, rerr.New(rerr.KindParseError, rerr.Location{}, "not a recognized bitcode container")
	}
	gr, err := gzip.NewReader(bytes.NewReader(data[len(bitcodeMagic):]))
	if err != nil {
		return nil, rerr.New(rerr.KindParseError, rerr.Location{}, "corrupt bitcode: %v", err)
	}
	defer gr.Close()
	text, err := io.ReadAll(gr)
	if err != nil {
		return nil, rerr.New(rerr.KindParseError, rerr.Location{}, "corrupt bitcode: %v", err)
	}
	return ParseText(string(text))
}

var (
	reDefine  = regexp.MustCompile(`^(define|declare)\s+(\S+)\s+@(\w+)\s*\(([^)]*)\)\s*(?:#attrs\(([^)]*)\)\s*)?(\{)?`)
	reLabel   = regexp.MustCompile(`^([\w.]+):$`)
	reResult  = regexp.MustCompile(`^%([\w.]+)\s*=\s*(.+)$`)
	reCall    = regexp.MustCompile(`^call\s+(\S+)\s+@(\w+)\s*\(([^)]*)\)$`)
	reBinop   = regexp.MustCompile(`^(add|sub|mul|sdiv|udiv|srem|urem|and|or|xor|shl|lshr|ashr|fadd|fsub|fmul|fdiv)\s+(\S+)\s+(.+)$`)
	reIcmp    = regexp.MustCompile(`^(icmp|fcmp)\s+(\w+)\s+(\S+)\s+(.+)$`)
	reConv    = regexp.MustCompile(`^(bitcast|inttoptr|ptrtoint|zext|sext|trunc|fptosi|sitofp)\s+(\S+)\s+(\S+)\s+to\s+(\S+)$`)
	rePhi     = regexp.MustCompile(`^phi\s+(\S+)\s+(.+)$`)
	rePhiEdge = regexp.MustCompile(`\[\s*([^,]+),\s*%([\w.]+)\s*\]`)
	reSelect  = regexp.MustCompile(`^select\s+(\S+)\s+(\S+),\s*(\S+)\s+(\S+),\s*(\S+)\s+(\S+)$`)
	reGEP     = regexp.MustCompile(`^getelementptr\s+(\S+)\s+(\S+),\s*(\S+)\s+(\S+)$`)
	reAlloca  = regexp.MustCompile(`^alloca\s+(\S+)$`)
	reLoad    = regexp.MustCompile(`^load\s+(\S+),\s*(\S+)\s+(\S+)$`)
	reStore   = regexp.MustCompile(`^store\s+(\S+)\s+(\S+),\s*(\S+)\s+(\S+)$`)
	reBrCond  = regexp.MustCompile(`^br\s+i1\s+(\S+),\s*label\s+%([\w.]+),\s*label\s+%([\w.]+)$`)
	reBrUncon = regexp.MustCompile(`^br\s+label\s+%([\w.]+)$`)
	reRetVoid = regexp.MustCompile(`^ret\s+void$`)
	reRetVal  = regexp.MustCompile(`^ret\s+(\S+)\s+(\S+)$`)

	// reGlobalString matches a top-level string-constant global such as
	// `@msg = private unnamed_addr constant [6 x i8] c"hello\00"`. Any
	// number of leading linkage/qualifier keywords (private, internal,
	// external, unnamed_addr, ...) is accepted before "constant".
	reGlobalString = regexp.MustCompile(`^@([\w.]+)\s*=\s*(?:\w+\s+)*constant\s+\[\s*\d+\s+x\s+i8\s*\]\s+c"((?:[^"\\]|\\.)*)"\s*$`)
)

// ParseText parses a textual QIR-subset module. Fails with a
// rerr.KindParseError on malformed input and rerr.KindUnsupportedFeature
// when an opcode or intrinsic outside Supported() appears.
func ParseText(text string) (*Module, error) {
	p := &parser{mod: &Module{Functions: map[string]*Function{}, Strings: map[string]string{}}}
	if err := p.run(text); err != nil {
		return nil, err
	}
	return p.mod, nil
}

type parser struct {
	mod  *Module
	line int
}

func (p *parser) errf(kind rerr.Kind, format string, args ...any) error {
	loc := rerr.Location{Instr: p.line}
	return rerr.New(kind, loc, format, args...)
}

func (p *parser) run(text string) error {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur *Function
	var curBlock *Block
	instrIdx := 0

	for sc.Scan() {
		p.line++
		raw := sc.Text()
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "}" {
			cur = nil
			curBlock = nil
			continue
		}

		if m := reGlobalString.FindStringSubmatch(line); m != nil {
			p.mod.Strings[m[1]] = decodeLLVMCString(m[2])
			continue
		}

		if m := reDefine.FindStringSubmatch(line); m != nil {
			kind, retTy, name, argsRaw, attrsRaw, hasBody := m[1], m[2], m[3], m[4], m[5], m[6]
			fn := &Function{
				Name:  name,
				RetTy: retTy,
				Attrs: parseAttrs(attrsRaw),
			}
			fn.Params = parseParams(argsRaw)
			if _, ok := fn.Attrs["EntryPoint"]; ok {
				fn.EntryPoint = true
			}
			p.mod.Functions[name] = fn
			p.mod.order = append(p.mod.order, name)
			if kind == "define" {
				if hasBody == "" {
					return p.errf(rerr.KindParseError, "define %s missing opening brace", name)
				}
				cur = fn
				instrIdx = 0
			}
			continue
		}

		if m := reLabel.FindStringSubmatch(line); m != nil {
			if cur == nil {
				return p.errf(rerr.KindParseError, "block label %q outside any function", m[1])
			}
			cur.Blocks = append(cur.Blocks, Block{Label: m[1]})
			curBlock = &cur.Blocks[len(cur.Blocks)-1]
			continue
		}

		if cur == nil {
			return p.errf(rerr.KindParseError, "instruction %q outside any function", line)
		}
		if curBlock == nil {
			// Allow a function with an implicit entry block and no label.
			cur.Blocks = append(cur.Blocks, Block{Label: "entry"})
			curBlock = &cur.Blocks[len(cur.Blocks)-1]
		}

		instr, err := p.parseInstr(line)
		if err != nil {
			return err
		}
		instr.Index = instrIdx
		instrIdx++
		curBlock.Instrs = append(curBlock.Instrs, instr)
	}
	if err := sc.Err(); err != nil {
		return p.errf(rerr.KindParseError, "scanning input: %v", err)
	}
	return nil
}

func stripComment(s string) string {
	if i := strings.Index(s, ";"); i >= 0 {
		return s[:i]
	}
	return s
}

func parseAttrs(raw string) map[string]string {
	attrs := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return attrs
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, "="); i >= 0 {
			attrs[strings.TrimSpace(part[:i])] = strings.TrimSpace(part[i+1:])
		} else {
			attrs[part] = "true"
		}
	}
	return attrs
}

func parseParams(raw string) []Param {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []Param
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		p := Param{Ty: fields[0]}
		if len(fields) > 1 {
			p.Name = strings.TrimPrefix(fields[1], "%")
		}
		params = append(params, p)
	}
	return params
}

func (p *parser) parseInstr(line string) (Instr, error) {
	if m := reResult.FindStringSubmatch(line); m != nil {
		name, rhs := m[1], strings.TrimSpace(m[2])
		instr, err := p.parseRHS(rhs)
		if err != nil {
			return Instr{}, err
		}
		instr.Result = name
		return instr, nil
	}
	return p.parseVoidStmt(line)
}

func (p *parser) parseVoidStmt(line string) (Instr, error) {
	switch {
	case reBrCond.MatchString(line):
		m := reBrCond.FindStringSubmatch(line)
		return Instr{
			Op: "br",
			Operands: []Operand{
				parseOperand("i1", m[1]),
				{Kind: OperandBlock, Name: m[2]},
				{Kind: OperandBlock, Name: m[3]},
			},
		}, nil
	case reBrUncon.MatchString(line):
		m := reBrUncon.FindStringSubmatch(line)
		return Instr{Op: "br", Operands: []Operand{{Kind: OperandBlock, Name: m[1]}}}, nil
	case reRetVoid.MatchString(line):
		return Instr{Op: "ret"}, nil
	case reRetVal.MatchString(line):
		m := reRetVal.FindStringSubmatch(line)
		return Instr{Op: "ret", Ty: m[1], Operands: []Operand{parseOperand(m[1], m[2])}}, nil
	case reStore.MatchString(line):
		m := reStore.FindStringSubmatch(line)
		return Instr{Op: "store", Operands: []Operand{
			parseOperand(m[1], m[2]), parseOperand(m[3], m[4]),
		}}, nil
	}
	if strings.HasPrefix(line, "call ") {
		return p.parseCall(line, "")
	}
	if op := strings.Fields(line)[0]; !Supported(op) {
		return Instr{}, p.errf(rerr.KindUnsupportedFeature, "unsupported opcode: %s", op)
	}
	return Instr{}, p.errf(rerr.KindParseError, "unrecognized statement: %q", line)
}

func (p *parser) parseRHS(rhs string) (Instr, error) {
	switch {
	case reCall.MatchString(rhs):
		return p.parseCall(rhs, "")
	case reBinop.MatchString(rhs):
		m := reBinop.FindStringSubmatch(rhs)
		op, ty, rest := m[1], m[2], m[3]
		ops, err := splitOperandPair(ty, rest)
		if err != nil {
			return Instr{}, p.errf(rerr.KindParseError, "%v", err)
		}
		return Instr{Op: op, Ty: ty, Operands: ops}, nil
	case reIcmp.MatchString(rhs):
		m := reIcmp.FindStringSubmatch(rhs)
		op, pred, ty, rest := m[1], m[2], m[3], m[4]
		ops, err := splitOperandPair(ty, rest)
		if err != nil {
			return Instr{}, p.errf(rerr.KindParseError, "%v", err)
		}
		return Instr{Op: op + "." + pred, Ty: ty, Operands: ops}, nil
	case reConv.MatchString(rhs):
		m := reConv.FindStringSubmatch(rhs)
		op, fromTy, val, toTy := m[1], m[2], m[3], m[4]
		return Instr{Op: op, Ty: toTy, Operands: []Operand{parseOperand(fromTy, val)}}, nil
	case rePhi.MatchString(rhs):
		m := rePhi.FindStringSubmatch(rhs)
		ty := m[1]
		edges := rePhiEdge.FindAllStringSubmatch(m[2], -1)
		instr := Instr{Op: "phi", Ty: ty}
		for _, e := range edges {
			instr.Phi = append(instr.Phi, PhiEdge{Pred: e[2], Value: parseOperand(ty, strings.TrimSpace(e[1]))})
		}
		return instr, nil
	case reSelect.MatchString(rhs):
		m := reSelect.FindStringSubmatch(rhs)
		condTy, cond, ty1, v1, ty2, v2 := m[1], m[2], m[3], m[4], m[5], m[6]
		return Instr{Op: "select", Ty: ty1, Operands: []Operand{
			parseOperand(condTy, cond), parseOperand(ty1, v1), parseOperand(ty2, v2),
		}}, nil
	case reGEP.MatchString(rhs):
		m := reGEP.FindStringSubmatch(rhs)
		baseTy, base, idxTy, idx := m[1], m[2], m[3], m[4]
		return Instr{Op: "getelementptr", Ty: baseTy, Operands: []Operand{
			parseOperand(baseTy, base), parseOperand(idxTy, idx),
		}}, nil
	case reAlloca.MatchString(rhs):
		m := reAlloca.FindStringSubmatch(rhs)
		return Instr{Op: "alloca", Ty: m[1]}, nil
	case reLoad.MatchString(rhs):
		m := reLoad.FindStringSubmatch(rhs)
		ty, ptrTy, ptr := m[1], m[2], m[3]
		return Instr{Op: "load", Ty: ty, Operands: []Operand{parseOperand(ptrTy, ptr)}}, nil
	}
	if op := strings.Fields(rhs)[0]; !Supported(op) {
		return Instr{}, p.errf(rerr.KindUnsupportedFeature, "unsupported opcode: %s", op)
	}
	return Instr{}, p.errf(rerr.KindParseError, "unrecognized expression: %q", rhs)
}

func (p *parser) parseCall(s string, resultName string) (Instr, error) {
	m := reCall.FindStringSubmatch(s)
	if m == nil {
		return Instr{}, p.errf(rerr.KindParseError, "malformed call: %q", s)
	}
	retTy, callee, argsRaw := m[1], m[2], m[3]
	if !Supported(callee) {
		// User-defined functions (not an intrinsic) are always allowed;
		// only names shaped like __quantum__* must be in our tables.
		if strings.HasPrefix(callee, "__quantum__") {
			return Instr{}, p.errf(rerr.KindUnsupportedFeature, "unsupported intrinsic: %s", callee)
		}
	}
	instr := Instr{Op: "call", Ty: retTy, Operands: []Operand{{Kind: OperandGlobal, Name: callee}}}
	for _, arg := range splitArgs(argsRaw) {
		fields := strings.Fields(arg)
		if len(fields) < 2 {
			continue
		}
		instr.Operands = append(instr.Operands, parseOperand(fields[0], fields[1]))
	}
	return instr, nil
}

// splitArgs splits a call's argument list on top-level commas (none of our
// types nest commas themselves, so this is a plain split).
func splitArgs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func splitOperandPair(ty, rest string) ([]Operand, error) {
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two operands, got %q", rest)
	}
	return []Operand{
		parseOperand(ty, strings.TrimSpace(parts[0])),
		parseOperand(ty, strings.TrimSpace(parts[1])),
	}, nil
}

// decodeLLVMCString decodes an LLVM-style quoted string-constant body
// (backslash-hex-pair escapes, e.g. "\00" for a NUL byte) into the text it
// represents, trimming exactly one trailing NUL terminator — the one the
// `[N x i8]` array type always reserves for it.
func decodeLLVMCString(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+2 < len(raw) {
			if hi, ok := hexDigit(raw[i+1]); ok {
				if lo, ok2 := hexDigit(raw[i+2]); ok2 {
					b.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
		}
		b.WriteByte(c)
	}
	return strings.TrimSuffix(b.String(), "\x00")
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func parseOperand(ty, tok string) Operand {
	tok = strings.TrimSpace(tok)
	switch {
	case strings.HasPrefix(tok, "%"):
		return Operand{Kind: OperandSSA, Name: strings.TrimPrefix(tok, "%")}
	case strings.HasPrefix(tok, "@"):
		return Operand{Kind: OperandGlobal, Name: strings.TrimPrefix(tok, "@")}
	case tok == "null":
		return Operand{Kind: OperandConst, Const: ConstLit{Ty: ty, Null: true}}
	case tok == "true":
		return Operand{Kind: OperandConst, Const: ConstLit{Ty: "i1", Int: 1}}
	case tok == "false":
		return Operand{Kind: OperandConst, Const: ConstLit{Ty: "i1", Int: 0}}
	default:
		if f, err := strconv.ParseFloat(tok, 64); err == nil && strings.ContainsAny(tok, ".eE") {
			return Operand{Kind: OperandConst, Const: ConstLit{Ty: ty, Flt: f}}
		}
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Operand{Kind: OperandConst, Const: ConstLit{Ty: ty, Int: n}}
		}
		return Operand{Kind: OperandConst, Const: ConstLit{Ty: ty}}
	}
}
