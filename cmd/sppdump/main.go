// sppdump prints every compiler stage for an SPP program: tokens, AST,
// generated assembly and the final symbol table.
package main

import (
	"fmt"
	"io"
	"os"

	"sppc/pkg/asm"
	"sppc/pkg/compiler"
	"sppc/pkg/utils"
)

const testSource = `const greeting = "hello";
let n = 10;
n = n * 2;
if (n > 15) {
    console.print(greeting + " " + n);
}
exit(0);
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}
	if err := dump(os.Stdout, src); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dump writes each stage that completed before the first error.
func dump(w io.Writer, src string) error {
	fmt.Fprintf(w, "Source:\n%s\n", src)

	res, err := compiler.CompileStages(src)
	if res.Tokens != nil {
		fmt.Fprintf(w, "Tokens (%d)\n", len(res.Tokens))
		utils.WriteTokens(w, res.Tokens)
		fmt.Fprintln(w)
	}
	if res.Program != nil {
		fmt.Fprintln(w, "AST")
		utils.WriteProgram(w, res.Program)
		fmt.Fprintln(w)
	}
	if err != nil {
		return err
	}

	listing, err := asm.Verify(res.Assembly)
	if err != nil {
		return fmt.Errorf("verify error: %w", err)
	}

	fmt.Fprintln(w, "Generated Assembly")
	fmt.Fprint(w, res.Assembly)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d instructions, %d data bytes, %d labels\n\n", listing.Instructions, listing.DataBytes, len(listing.Labels))
	fmt.Fprint(w, res.Symbols)

	vars := res.Symbols.Variables()
	fmt.Fprintf(w, "\nStorage cells (%d)\n", len(vars))
	for _, sym := range vars {
		fmt.Fprintf(w, "  %-24s %-12s line %d\n", sym.Cell, sym.Name, listing.Labels[sym.Cell])
	}
	return nil
}
