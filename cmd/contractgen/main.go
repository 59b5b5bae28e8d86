package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/sghaida/contractgen/internal/config"
	"github.com/sghaida/contractgen/internal/generate"
	"github.com/sghaida/contractgen/internal/logging"
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("contractgen", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: contractgen [flags] [patterns...]\n\n%s", fs.FlagUsages())
	}

	cfgPath := fs.StringP("config", "c", "", "config file (default ./"+config.FileName+" when present)")
	check := fs.Bool("check", false, "report out of date generated files without writing")
	jobs := fs.IntP("jobs", "j", 0, "parallel workers (default GOMAXPROCS)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	noEmbed := fs.Bool("no-embed-diagnostics", false, "do not write failing sentinels into generated files")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	path, optional := *cfgPath, false
	if path == "" {
		path, optional = config.FileName, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	if fs.Changed("jobs") {
		cfg.Jobs = *jobs
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if *noEmbed {
		off := false
		cfg.EmbedDiagnostics = &off
	}
	config.ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}

	rep, err := generate.New(cfg, log).Run(ctx, fs.Args(), *check)
	for _, f := range rep.Written {
		fmt.Fprintln(stdout, "wrote", f)
	}
	for _, f := range rep.Stale {
		fmt.Fprintln(stdout, "stale", f)
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "contractgen:", err)
		os.Exit(1)
	}
}
