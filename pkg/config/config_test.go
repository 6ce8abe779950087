package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sppc.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nasm", cfg.Toolchain.Assembler)
	assert.Equal(t, []string{"-f", "elf64"}, cfg.Toolchain.AssemblerArgs)
	assert.Equal(t, "ld", cfg.Toolchain.Linker)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Log.Verbosity)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeFile(t, `
[Toolchain]
Linker = "ld.lld"
LinkerArgs = ["-s"]

[Output]
KeepAsm = true

[Log]
Verbosity = 5
`)
	cfg := Defaults()
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "nasm", cfg.Toolchain.Assembler)
	assert.Equal(t, "ld.lld", cfg.Toolchain.Linker)
	assert.Equal(t, []string{"-s"}, cfg.Toolchain.LinkerArgs)
	assert.True(t, cfg.Output.KeepAsm)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, 5, cfg.Log.Verbosity)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"UnknownField", "[Output]\nColour = true\n", "field 'Colour' is not defined"},
		{"BadVerbosity", "[Log]\nVerbosity = 9\n", "out of range"},
		{"EmptyAssembler", "[Toolchain]\nAssembler = \"\"\n", "Toolchain.Assembler"},
		{"Syntax", "[Toolchain\n", "sppc.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			err := Load(writeFile(t, tt.content), &cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Defaults()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.toml"), &cfg))
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Output.KeepAsm = true
	out, err := Marshal(&cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "[Toolchain]")
	assert.Contains(t, string(out), `Assembler = "nasm"`)

	loaded := Config{}
	require.NoError(t, Load(writeFile(t, string(out)), &loaded))
	assert.Equal(t, cfg.Toolchain.Assembler, loaded.Toolchain.Assembler)
	assert.Equal(t, cfg.Toolchain.AssemblerArgs, loaded.Toolchain.AssemblerArgs)
	assert.True(t, loaded.Output.KeepAsm)
}

func TestNewToolchain(t *testing.T) {
	cfg := Defaults()
	cfg.Output.KeepAsm = true
	tc := cfg.NewToolchain()
	assert.Equal(t, "nasm", tc.Assembler)
	assert.Equal(t, "ld", tc.Linker)
	assert.True(t, tc.KeepAsm)

	// The toolchain owns its argument slices.
	tc.AssemblerArgs[0] = "-g"
	assert.Equal(t, "-f", cfg.Toolchain.AssemblerArgs[0])
}
