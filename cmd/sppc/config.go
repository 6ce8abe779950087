package main

import (
	"os"

	"gopkg.in/urfave/cli.v1"

	"sppc/pkg/config"
)

// makeConfig applies, in order, the defaults, the --config file and the
// command line flags.
func makeConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Defaults()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.GlobalIsSet(outputDirFlag.Name) {
		cfg.Output.Dir = ctx.GlobalString(outputDirFlag.Name)
	}
	if ctx.GlobalIsSet(keepAsmFlag.Name) {
		cfg.Output.KeepAsm = ctx.GlobalBool(keepAsmFlag.Name)
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.GlobalInt(verbosityFlag.Name)
	}
	return cfg, cfg.Validate()
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := config.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}
