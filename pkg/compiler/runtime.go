package compiler

import (
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	numBufferSize = 32
	strBufferSize = 4096
)

// fixedTokens are emitted at the top of the data region of every program.
var fixedTokens = []struct {
	label string
	bytes string
}{
	{"true_str", `"true", 10, 0`},
	{"false_str", `"false", 10, 0`},
	{"null_str", `"null", 10, 0`},
	{"array_open", `"[", 0`},
	{"array_close", `"]", 0`},
	{"array_sep", `", ", 0`},
	{"newline_str", `10, 0`},
}

// Length of each fixed token's text, not counting the newline and terminator.
var fixedTokenLen = map[string]int{
	"true_str":    4,
	"false_str":   5,
	"null_str":    4,
	"array_open":  1,
	"array_close": 1,
	"array_sep":   2,
	"newline_str": 1,
}

// runtimeHelpers is appended after the program's exit sequence. All
// helpers append to str_buffer at the cursor held in r15.
//
//	append_string  rsi = zero-terminated text; stops before a newline that
//	               is directly followed by the terminator
//	append_number  rax = signed integer, written most significant digit first
//	append_bool    rax = 0 or non-zero
//	append_null
//	append_newline
//	flush_buffer   writes str_buffer up to r15 to stdout
var runtimeHelpers = strings.TrimLeft(`
append_string:
    lea rdx, [str_buffer + `+strconv.Itoa(strBufferSize-1)+`]
.loop:
    mov al, [rsi]
    test al, al
    jz .done
    cmp al, 10
    jne .copy
    cmp byte [rsi + 1], 0
    je .done
.copy:
    cmp r15, rdx
    jae .done
    mov [r15], al
    inc r15
    inc rsi
    jmp .loop
.done:
    ret

append_number:
    lea rdx, [str_buffer + `+strconv.Itoa(strBufferSize-numBufferSize)+`]
    cmp r15, rdx
    ja .done
    test rax, rax
    jnz .nonzero
    mov byte [r15], '0'
    inc r15
    ret
.nonzero:
    jns .positive
    mov byte [r15], '-'
    inc r15
    neg rax
.positive:
    lea rsi, [num_buffer + `+strconv.Itoa(numBufferSize)+`]
    mov rcx, 10
.digit:
    xor rdx, rdx
    div rcx
    add dl, '0'
    dec rsi
    mov [rsi], dl
    test rax, rax
    jnz .digit
    lea rdx, [num_buffer + `+strconv.Itoa(numBufferSize)+`]
.copy:
    mov al, [rsi]
    mov [r15], al
    inc r15
    inc rsi
    cmp rsi, rdx
    jb .copy
.done:
    ret

append_bool:
    mov rsi, false_str
    test rax, rax
    jz append_string
    mov rsi, true_str
    jmp append_string

append_null:
    mov rsi, null_str
    jmp append_string

append_newline:
    mov byte [r15], 10
    inc r15
    ret

flush_buffer:
    mov rdx, r15
    mov rsi, str_buffer
    sub rdx, rsi
    mov rax, 1
    mov rdi, 1
    syscall
    ret
`, "\n")

// nasmBytes renders text as a NASM db operand list: printable runs are
// quoted, everything else (including the quote character) is numeric.
func nasmBytes(text string) []string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, `"`+run.String()+`"`)
			run.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 0x20 && c < 0x7f && c != '"' {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, strconv.Itoa(int(c)))
	}
	flush()
	return parts
}

// blobLine is the data-region definition of a printable blob: the text,
// a newline and a zero terminator.
func blobLine(label, text string) string {
	parts := append(nasmBytes(text), "10", "0")
	return "    " + label + " db " + strings.Join(parts, ", ")
}

// mangle turns a source name into a NASM-safe label fragment. Names made
// only of ASCII letters, digits and underscores are kept; anything else is
// hex-encoded behind an "@", which no source name can contain.
func mangle(name string) string {
	safe := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			safe = false
			break
		}
	}
	if safe {
		return name
	}
	return "@" + hex.EncodeToString([]byte(name))
}
