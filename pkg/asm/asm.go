// Package asm checks generated NASM text before it is handed to the
// external assembler, and drives the assembler and linker.
package asm

import (
	"fmt"
	"strings"
	"unicode"
)

// Section order every document must follow; each appears at most once.
var sectionOrder = map[string]int{
	".data": 0,
	".bss":  1,
	".text": 2,
}

var dataDirectives = map[string]bool{
	"db": true, "dw": true, "dd": true, "dq": true,
}

var reserveDirectives = map[string]bool{
	"resb": true, "resw": true, "resd": true, "resq": true,
}

// branchOps take a single label operand.
var branchOps = map[string]bool{
	"jmp": true, "call": true,
	"jz": true, "jnz": true, "je": true, "jne": true,
	"ja": true, "jae": true, "jb": true, "jbe": true,
	"jl": true, "jle": true, "jg": true, "jge": true,
	"js": true, "jns": true,
}

var plainOps = map[string]bool{
	"mov": true, "movzx": true, "movsxd": true, "lea": true,
	"add": true, "sub": true, "imul": true, "idiv": true, "div": true,
	"neg": true, "inc": true, "dec": true, "xor": true,
	"cmp": true, "test": true, "cdq": true, "cqo": true,
	"push": true, "pop": true, "ret": true, "syscall": true,
	"sete": true, "setne": true, "setl": true, "setg": true, "setle": true, "setge": true,
}

var registers = map[string]bool{}

func init() {
	for _, r := range []string{"ax", "bx", "cx", "dx", "si", "di", "sp", "bp"} {
		registers["r"+r] = true
		registers["e"+r] = true
		registers[r] = true
	}
	for _, r := range []string{"al", "bl", "cl", "dl", "sil", "dil", "ah", "bh", "ch", "dh"} {
		registers[r] = true
	}
	for i := 8; i <= 15; i++ {
		for _, suffix := range []string{"", "d", "w", "b"} {
			registers[fmt.Sprintf("r%d%s", i, suffix)] = true
		}
	}
}

// sizeWords may appear in memory operands and are not label references.
var sizeWords = map[string]bool{
	"byte": true, "word": true, "dword": true, "qword": true, "rel": true,
}

// Listing summarises a verified document.
type Listing struct {
	Labels       map[string]int // fully qualified label -> defining line
	Sections     []string       // in order of appearance
	Instructions int
	DataBytes    int // bytes defined by db directives
}

// Verifier runs two passes over a NASM document: the first collects label
// definitions and checks structure, the second resolves every reference.
type Verifier struct {
	labels  map[string]int
	globals map[string]int
}

type parsedLine struct {
	lineNo    int
	label     string // defined label, local labels already qualified
	directive string // section, global, default, or a data/reserve directive
	mnemonic  string
	operands  []string
	parent    string // enclosing non-local label
}

func NewVerifier() *Verifier {
	return &Verifier{
		labels:  make(map[string]int),
		globals: make(map[string]int),
	}
}

// Verify checks code with a fresh Verifier.
func Verify(code string) (*Listing, error) {
	return NewVerifier().Verify(code)
}

func (v *Verifier) Verify(code string) (*Listing, error) {
	lines, err := v.parse(code)
	if err != nil {
		return nil, err
	}

	listing, err := v.pass1(lines)
	if err != nil {
		return nil, err
	}

	if err := v.pass2(lines); err != nil {
		return nil, err
	}
	return listing, nil
}

func (v *Verifier) parse(code string) ([]parsedLine, error) {
	var out []parsedLine
	parent := ""
	for i, raw := range strings.Split(code, "\n") {
		p, err := parseLine(raw, i+1, parent)
		if err != nil {
			return nil, err
		}
		if p.label != "" && !strings.HasPrefix(p.label, parent+".") {
			parent = p.label
		}
		p.parent = parent
		out = append(out, p)
	}
	return out, nil
}

func (v *Verifier) pass1(lines []parsedLine) (*Listing, error) {
	listing := &Listing{Labels: v.labels}
	section := ""
	lastOrder := -1

	for _, p := range lines {
		switch p.directive {
		case "section":
			name := p.operands[0]
			order, ok := sectionOrder[name]
			if !ok {
				return nil, fmt.Errorf("unknown section '%s' on line %d", name, p.lineNo)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section '%s' out of order on line %d", name, p.lineNo)
			}
			lastOrder = order
			section = name
			listing.Sections = append(listing.Sections, name)
			continue
		case "global":
			for _, g := range p.operands {
				v.globals[g] = p.lineNo
			}
			continue
		case "default":
			continue
		}

		if p.label != "" {
			if section == "" {
				return nil, fmt.Errorf("label '%s' outside any section on line %d", p.label, p.lineNo)
			}
			if prev, exists := v.labels[p.label]; exists {
				return nil, fmt.Errorf("duplicate label '%s' on line %d (first defined on line %d)", p.label, p.lineNo, prev)
			}
			v.labels[p.label] = p.lineNo
		}

		switch {
		case dataDirectives[p.directive]:
			if section != ".data" {
				return nil, fmt.Errorf("%s outside .data on line %d", p.directive, p.lineNo)
			}
			n, err := countBytes(p.operands, p.lineNo)
			if err != nil {
				return nil, err
			}
			listing.DataBytes += n
		case reserveDirectives[p.directive]:
			if section != ".bss" {
				return nil, fmt.Errorf("%s outside .bss on line %d", p.directive, p.lineNo)
			}
		case p.mnemonic != "":
			if section != ".text" {
				return nil, fmt.Errorf("instruction '%s' outside .text on line %d", p.mnemonic, p.lineNo)
			}
			if !branchOps[p.mnemonic] && !plainOps[p.mnemonic] {
				return nil, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
			}
			listing.Instructions++
		}
	}

	for g, lineNo := range v.globals {
		if _, ok := v.labels[g]; !ok {
			return nil, fmt.Errorf("global '%s' declared on line %d is never defined", g, lineNo)
		}
	}
	if _, ok := v.globals["_start"]; !ok {
		return nil, fmt.Errorf("entry point _start is not declared global")
	}
	return listing, nil
}

func (v *Verifier) pass2(lines []parsedLine) error {
	for _, p := range lines {
		if p.mnemonic == "" {
			continue
		}
		if branchOps[p.mnemonic] && len(p.operands) != 1 {
			return fmt.Errorf("%s expects exactly one operand on line %d", p.mnemonic, p.lineNo)
		}
		for _, op := range p.operands {
			for _, ref := range references(op) {
				key := normalizeLabel(ref, p.parent)
				if _, ok := v.labels[key]; !ok {
					return fmt.Errorf("undefined label '%s' on line %d", ref, p.lineNo)
				}
			}
		}
	}
	return nil
}

func parseLine(raw string, lineNo int, parent string) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "section", "global", "default":
		if len(fields) < 2 {
			return p, fmt.Errorf("%s expects an operand on line %d", fields[0], lineNo)
		}
		p.directive = strings.ToLower(fields[0])
		p.operands = fields[1:]
		return p, nil
	}

	// label: [instruction]
	if colon := strings.IndexByte(line, ':'); colon > 0 && !strings.ContainsAny(line[:colon], " \t'\"") {
		name := line[:colon]
		if !isIdentifier(strings.TrimPrefix(name, ".")) {
			return p, fmt.Errorf("invalid label '%s' on line %d", name, lineNo)
		}
		p.label = normalizeLabel(name, parent)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
		fields = strings.Fields(line)
	}

	// name db/resq ...
	if len(fields) >= 2 {
		dir := strings.ToLower(fields[1])
		if dataDirectives[dir] || reserveDirectives[dir] {
			if p.label != "" || !isIdentifier(fields[0]) {
				return p, fmt.Errorf("invalid data definition on line %d", lineNo)
			}
			p.label = fields[0]
			p.directive = dir
			after := len(fields[0])
			after += strings.Index(line[after:], fields[1]) + len(fields[1])
			rest := strings.TrimSpace(line[after:])
			p.operands = splitOperands(rest)
			return p, nil
		}
	}

	p.mnemonic = strings.ToLower(fields[0])
	p.operands = splitOperands(strings.TrimSpace(line[len(fields[0]):]))
	return p, nil
}

// stripComments removes a trailing ';' comment, ignoring semicolons inside
// quoted strings.
func stripComments(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == ';':
			return line[:i]
		}
	}
	return line
}

// splitOperands splits on commas outside quotes.
func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		case r == ',':
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// countBytes sizes a db operand list of quoted strings and byte values.
func countBytes(operands []string, lineNo int) (int, error) {
	n := 0
	for _, op := range operands {
		if len(op) >= 2 && (op[0] == '"' || op[0] == '\'') && op[len(op)-1] == op[0] {
			n += len(op) - 2
			continue
		}
		if op == "" {
			return 0, fmt.Errorf("empty data operand on line %d", lineNo)
		}
		n++
	}
	return n, nil
}

// references returns the label names an operand mentions.
func references(op string) []string {
	var refs []string
	var quote rune
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := op[start:end]
		start = -1
		lower := strings.ToLower(word)
		if registers[lower] || sizeWords[lower] || unicode.IsDigit(rune(word[0])) {
			return
		}
		refs = append(refs, word)
	}
	for i, r := range op {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		if r == '"' || r == '\'' || r == '`' {
			flush(i)
			quote = r
			continue
		}
		if r == '_' || r == '.' || r == '@' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(op))
	return refs
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '@' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || r == '.') {
			continue
		}
		return false
	}
	return true
}

// normalizeLabel qualifies a local ".name" label with its enclosing label.
func normalizeLabel(label, parent string) string {
	if strings.HasPrefix(label, ".") {
		return parent + label
	}
	return label
}
