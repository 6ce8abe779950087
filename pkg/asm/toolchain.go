package asm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cespare/cp"
	"github.com/ethereum/go-ethereum/log"
)

// Toolchain turns NASM text into a Linux executable with an external
// assembler and linker.
type Toolchain struct {
	Assembler     string   // e.g. "nasm"
	AssemblerArgs []string // placed before "-o obj asm"
	Linker        string   // e.g. "ld"
	LinkerArgs    []string // placed before "-o exe obj"

	// KeepAsm copies the assembly next to the executable as <exe>.asm.
	KeepAsm bool
}

// DefaultToolchain is nasm + ld producing a static elf64 binary.
func DefaultToolchain() *Toolchain {
	return &Toolchain{
		Assembler:     "nasm",
		AssemblerArgs: []string{"-f", "elf64"},
		Linker:        "ld",
	}
}

// Available reports an error naming the first tool missing from PATH.
func (tc *Toolchain) Available() error {
	for _, tool := range []string{tc.Assembler, tc.Linker} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found: %w", tool, err)
		}
	}
	return nil
}

// Build verifies assembly, assembles and links it into exePath inside a
// scratch directory that is removed afterwards, and marks the result
// executable.
func (tc *Toolchain) Build(ctx context.Context, assembly, exePath string) error {
	if _, err := Verify(assembly); err != nil {
		return fmt.Errorf("generated assembly rejected: %w", err)
	}

	dir, err := os.MkdirTemp("", fmt.Sprintf("spp-build-%d-", os.Getpid()))
	if err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(dir)

	asmPath := filepath.Join(dir, "output.asm")
	objPath := filepath.Join(dir, "output.o")
	if err := os.WriteFile(asmPath, []byte(assembly), 0o644); err != nil {
		return fmt.Errorf("write assembly: %w", err)
	}

	if err := tc.Assemble(ctx, asmPath, objPath); err != nil {
		return err
	}
	if err := tc.Link(ctx, objPath, exePath); err != nil {
		return err
	}
	if err := os.Chmod(exePath, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", exePath, err)
	}

	if tc.KeepAsm {
		if err := cp.CopyFile(exePath+".asm", asmPath); err != nil {
			return fmt.Errorf("keep assembly: %w", err)
		}
	}
	log.Debug("Built executable", "path", exePath, "dir", dir)
	return nil
}

// Assemble runs the assembler on asmPath producing objPath.
func (tc *Toolchain) Assemble(ctx context.Context, asmPath, objPath string) error {
	args := append(append([]string{}, tc.AssemblerArgs...), "-o", objPath, asmPath)
	return run(ctx, "assembler", tc.Assembler, args)
}

// Link runs the linker on objPath producing exePath.
func (tc *Toolchain) Link(ctx context.Context, objPath, exePath string) error {
	args := append(append([]string{}, tc.LinkerArgs...), "-o", exePath, objPath)
	return run(ctx, "linker", tc.Linker, args)
}

func run(ctx context.Context, role, name string, args []string) error {
	log.Debug("Running "+role, "cmd", name+" "+strings.Join(args, " "))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s %s failed: %w\n%s", role, name, err, msg)
		}
		return fmt.Errorf("%s %s failed: %w", role, name, err)
	}
	return nil
}
