package utils

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"sppc/pkg/compiler"
)

// WriteTokens renders tokens as a table of index, type, lexeme and line.
func WriteTokens(w io.Writer, tokens []compiler.Token) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Lexeme", "Line"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, tok := range tokens {
		table.Append([]string{
			strconv.Itoa(i),
			tok.Type.String(),
			strconv.Quote(tok.Lexeme),
			strconv.Itoa(tok.Line),
		})
	}
	table.Render()
}

// WriteProgram prints one indented statement per line.
func WriteProgram(w io.Writer, stmts []compiler.Stmt) {
	for _, s := range stmts {
		fmt.Fprintln(w, " ", s)
	}
}
