// Package config holds the sppc settings that can be loaded from a TOML
// file and overridden on the command line.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"sppc/pkg/asm"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type ToolchainConfig struct {
	Assembler     string
	AssemblerArgs []string
	Linker        string
	LinkerArgs    []string
}

type OutputConfig struct {
	Dir     string // directory for executables when no output path is given
	KeepAsm bool   // keep <exe>.asm next to each executable
}

type LogConfig struct {
	Verbosity int // 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace
}

// Config is the complete sppc configuration.
type Config struct {
	Toolchain ToolchainConfig
	Output    OutputConfig
	Log       LogConfig
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Toolchain: ToolchainConfig{
			Assembler:     "nasm",
			AssemblerArgs: []string{"-f", "elf64"},
			Linker:        "ld",
			LinkerArgs:    []string{},
		},
		Output: OutputConfig{Dir: "."},
		Log:    LogConfig{Verbosity: 3},
	}
}

// Load decodes the TOML file over cfg; keys absent from the file keep
// their current values.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate rejects settings no build could run with.
func (c *Config) Validate() error {
	if c.Toolchain.Assembler == "" {
		return errors.New("Toolchain.Assembler must not be empty")
	}
	if c.Toolchain.Linker == "" {
		return errors.New("Toolchain.Linker must not be empty")
	}
	if c.Log.Verbosity < 0 || c.Log.Verbosity > 5 {
		return fmt.Errorf("Log.Verbosity %d out of range 0-5", c.Log.Verbosity)
	}
	return nil
}

// Marshal renders cfg as TOML.
func Marshal(cfg *Config) ([]byte, error) {
	return tomlSettings.Marshal(cfg)
}

// NewToolchain builds the assembler/linker runner described by c.
func (c *Config) NewToolchain() *asm.Toolchain {
	return &asm.Toolchain{
		Assembler:     c.Toolchain.Assembler,
		AssemblerArgs: append([]string{}, c.Toolchain.AssemblerArgs...),
		Linker:        c.Toolchain.Linker,
		LinkerArgs:    append([]string{}, c.Toolchain.LinkerArgs...),
		KeepAsm:       c.Output.KeepAsm,
	}
}
