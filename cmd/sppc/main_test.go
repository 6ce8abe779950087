package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs sppc with args and returns what it wrote to its writer.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"sppc"}, args...))
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestEmitAsm(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "hello.spp", `console.print("hi"); exit(2);`)
	outDir := filepath.Join(dir, "out")

	_, err := runApp(t, "--verbosity", "1", "--emit", "asm", "--output-dir", outDir, src)
	require.NoError(t, err)

	code, err := os.ReadFile(filepath.Join(outDir, "hello.asm"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "_start:")
	assert.Contains(t, string(code), `"hi", 10, 0`)
}

func TestEmitAsm_RelativeSource(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "rel.spp", `exit(1);`)
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err := runApp(t, "--verbosity", "1", "--emit", "asm", "rel.spp")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "rel.asm"))
}

func TestEmitAsm_ExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.spp", `exit(0);`)
	out := filepath.Join(dir, "custom.s")

	_, err := runApp(t, "--verbosity", "1", "--emit", "asm", "-o", out, src)
	require.NoError(t, err)
	assert.FileExists(t, out)

	// a relative -o is placed inside --output-dir
	_, err = runApp(t, "--verbosity", "1", "--emit", "asm", "--output-dir", dir, "-o", "rel.s", src)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "rel.s"))
}

func TestEmitAsm_ManyFiles(t *testing.T) {
	dir := t.TempDir()
	var srcs []string
	for _, name := range []string{"one.spp", "two.spp", "three.spp"} {
		srcs = append(srcs, writeSource(t, dir, name, `let x = 1; console.print(x);`))
	}

	args := append([]string{"--verbosity", "1", "--emit", "asm", "--output-dir", dir}, srcs...)
	_, err := runApp(t, args...)
	require.NoError(t, err)
	for _, name := range []string{"one.asm", "two.asm", "three.asm"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestEmitTokensAndAST(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "p.spp", `let x = 1 + 2;`)

	out, err := runApp(t, "--verbosity", "1", "--emit", "tokens", src)
	require.NoError(t, err)
	assert.Contains(t, out, "IDENTIFIER")
	assert.Contains(t, out, "PLUS")

	out, err = runApp(t, "--verbosity", "1", "--emit", "ast", src)
	require.NoError(t, err)
	assert.Contains(t, out, "x")
	assert.NotContains(t, out, "IDENTIFIER")
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.spp", `exit(0);`)
	bad := writeSource(t, dir, "bad.spp", `const z = 10 / 0;`)
	wrongExt := writeSource(t, dir, "prog.c", `exit(0);`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"NoInputs", nil, "no input files"},
		{"WrongExtension", []string{wrongExt}, "extension"},
		{"OutputWithManyInputs", []string{"-o", "x", good, bad}, "-o cannot be used"},
		{"UnknownEmit", []string{"--emit", "ir", good}, "unknown --emit stage"},
		{"ArithmeticError", []string{"--emit", "asm", bad}, "bad.spp: arithmetic error"},
		{"MissingFile", []string{"--emit", "asm", filepath.Join(dir, "nope.spp")}, "nope.spp"},
		{"BadVerbosity", []string{"--verbosity", "9", good}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoFileExists(t, filepath.Join(dir, "bad.asm"))
}

func TestDumpConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "sppc.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("[Toolchain]\nLinker = \"ld.gold\"\n\n[Output]\nDir = \"build\"\n"), 0o644))

	out, err := runApp(t, "--config", cfgFile, "--output-dir", "bin", "--keep-asm", "dumpconfig")
	require.NoError(t, err)
	assert.Contains(t, out, `Linker = "ld.gold"`)
	assert.Contains(t, out, `Dir = "bin"`)
	assert.Contains(t, out, "KeepAsm = true")

	dumped := filepath.Join(dir, "dump.toml")
	_, err = runApp(t, "dumpconfig", dumped)
	require.NoError(t, err)
	data, err := os.ReadFile(dumped)
	require.NoError(t, err)
	assert.Contains(t, string(data), `Assembler = "nasm"`)
}

func TestBuildExecutable(t *testing.T) {
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	dir := t.TempDir()
	src := writeSource(t, dir, "prog.spp", `console.print("n=" + 5); exit(4);`)

	_, err := runApp(t, "--verbosity", "1", "--keep-asm", "--output-dir", dir, src)
	require.NoError(t, err)

	exe := filepath.Join(dir, "prog")
	assert.FileExists(t, exe+".asm")

	cmd := exec.Command(exe)
	stdout, err := cmd.Output()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 4, exitErr.ExitCode())
	assert.Equal(t, "n=5\n", string(stdout))
}
