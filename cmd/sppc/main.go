// sppc compiles SPP source files into x86-64 Linux executables.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"sppc/pkg/compiler"
	"sppc/pkg/config"
	"sppc/pkg/utils"
)

const version = "0.3.0"

var (
	outputFlag = cli.StringFlag{
		Name:  "output, o",
		Usage: "output path (only with a single input file)",
	}
	outputDirFlag = cli.StringFlag{
		Name:  "output-dir",
		Usage: "directory for outputs when -o is not given",
	}
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	emitFlag = cli.StringFlag{
		Name:  "emit",
		Usage: "stop after a stage: tokens, ast, asm or exe",
		Value: "exe",
	}
	keepAsmFlag = cli.BoolFlag{
		Name:  "keep-asm",
		Usage: "keep <exe>.asm next to each executable",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}

	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[file]",
		Description: `The dumpconfig command shows the effective configuration as TOML.`,
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "sppc"
	app.Usage = "the SPP compiler"
	app.UsageText = "sppc [options] file.spp..."
	app.Version = version
	app.Flags = []cli.Flag{
		outputFlag,
		outputDirFlag,
		configFileFlag,
		emitFlag,
		keepAsmFlag,
		verbosityFlag,
	}
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = compileFiles
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// job is one input file and where its output goes.
type job struct {
	src string
	out string
	buf bytes.Buffer // stage dumps, printed in input order
}

func compileFiles(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Verbosity)

	emit := ctx.GlobalString(emitFlag.Name)
	switch emit {
	case "tokens", "ast", "asm", "exe":
	default:
		return fmt.Errorf("unknown --emit stage %q (want tokens, ast, asm or exe)", emit)
	}

	inputs := ctx.Args()
	if len(inputs) == 0 {
		cli.ShowAppHelp(ctx)
		return fmt.Errorf("no input files")
	}
	output := ctx.GlobalString(outputFlag.Name)
	if output != "" && len(inputs) > 1 {
		return fmt.Errorf("-o cannot be used with %d input files", len(inputs))
	}

	jobs := make([]*job, len(inputs))
	for i, in := range inputs {
		if err := utils.CheckSourceExt(in); err != nil {
			return err
		}
		j := &job{src: in, out: output}
		if j.out != "" && !filepath.IsAbs(j.out) {
			j.out = filepath.Join(cfg.Output.Dir, j.out)
		}
		if j.out == "" {
			j.out = utils.DefaultOutputPath(in, cfg.Output.Dir)
			if emit == "asm" {
				j.out = utils.WithExt(j.out, ".asm")
			}
		}
		jobs[i] = j
	}

	g, gctx := errgroup.WithContext(context.Background())
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := run(gctx, &cfg, emit, j); err != nil {
				return fmt.Errorf("%s: %w", j.src, err)
			}
			return nil
		})
	}
	err = g.Wait()
	for _, j := range jobs {
		ctx.App.Writer.Write(j.buf.Bytes())
	}
	return err
}

func run(ctx context.Context, cfg *config.Config, emit string, j *job) error {
	path, dir, err := utils.GetPathInfo(j.src)
	if err != nil {
		return err
	}
	log.Debug("Compiling", "src", path, "dir", dir, "emit", emit)
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	res, err := compiler.CompileStages(string(source))
	switch emit {
	case "tokens":
		if res.Tokens != nil {
			utils.WriteTokens(&j.buf, res.Tokens)
		}
		return err
	case "ast":
		if res.Program != nil {
			utils.WriteProgram(&j.buf, res.Program)
		}
		return err
	}
	if err != nil {
		return err
	}

	if emit == "asm" {
		if err := os.MkdirAll(filepath.Dir(j.out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(j.out, []byte(res.Assembly), 0o644); err != nil {
			return err
		}
		log.Info("Wrote assembly", "src", path, "out", j.out, "bytes", len(res.Assembly))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.out), 0o755); err != nil {
		return err
	}
	if err := cfg.NewToolchain().Build(ctx, res.Assembly, j.out); err != nil {
		return err
	}
	log.Info("Built executable", "src", path, "out", j.out)
	return nil
}
