// Package main is memloader: a load generator to measure and stress-test the
// tiered memory manager against the Go runtime allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/memtier"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

var (
	version = "1.0"
	build   = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "memloader"
	app.Usage = "load generator to benchmark the tiered memory manager (tmm)"
	app.Version = fmt.Sprintf("%s (build %s)", version, build)
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "mode", Value: modeFixed, Usage: "workload: fixed | random | churn"},
		cli.IntFlag{Name: "workers", Value: 0, Usage: "number of concurrent workers (0 - hardware concurrency)"},
		cli.IntFlag{Name: "iterations", Value: 10000, Usage: "allocate/free iterations per worker"},
		cli.StringFlag{Name: "minsize", Value: "64B", Usage: "minimum allocation size"},
		cli.StringFlag{Name: "maxsize", Value: "1KiB", Usage: "maximum allocation size"},
		cli.StringFlag{Name: "heap-bytes", Value: "", Usage: "per-heap reservation (default 1MiB)"},
		cli.StringFlag{Name: "policy", Value: memtier.ReclaimCoinFlip, Usage: "reclaim policy: coinflip | age"},
		cli.IntFlag{Name: "hold", Value: 64, Usage: "churn mode: max live buffers held per worker"},
		cli.BoolFlag{Name: "compare-std", Usage: "also run the same workload on the runtime allocator"},
		cli.BoolFlag{Name: "verify", Usage: "checksum payloads and verify before free"},
		cli.BoolFlag{Name: "no-progress", Usage: "disable the progress bar"},
		cli.StringFlag{Name: "report", Usage: "write a JSON report to the given file"},
		cli.StringFlag{Name: "file,f", Usage: "load the workload spec from a YAML file"},
	}
	app.Action = runCLI
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(c *cli.Context) error {
	spec, err := specFromContext(c)
	if err != nil {
		return err
	}
	// positional compatibility: memloader [mode [workers [iterations]]]
	args := c.Args()
	if len(args) > 0 {
		spec.Mode = args[0]
	}
	if len(args) > 1 {
		if spec.Workers, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid thread count %q", args[1])
		}
	}
	if len(args) > 2 {
		if spec.Iterations, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("invalid iteration count %q", args[2])
		}
	}
	if err = spec.validate(); err != nil {
		return err
	}

	report, err := run(spec, !c.Bool("no-progress"))
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)

	if c.Bool("compare-std") {
		stdReport, err := runStd(spec, !c.Bool("no-progress"))
		if err != nil {
			return err
		}
		printComparison(os.Stdout, report, stdReport)
	}
	if path := c.String("report"); path != "" {
		if err := saveReport(path, report); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", path)
	}
	return nil
}

func specFromContext(c *cli.Context) (spec workloadSpec, err error) {
	if path := c.String("file"); path != "" {
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return
		}
		defer f.Close()
		if err = yaml.NewDecoder(f).Decode(&spec); err != nil {
			return
		}
	}
	if spec.Mode == "" {
		spec.Mode = c.String("mode")
	}
	if spec.Workers == 0 {
		spec.Workers = c.Int("workers")
	}
	if spec.Iterations == 0 {
		spec.Iterations = c.Int("iterations")
	}
	if spec.MinSize == 0 {
		if spec.MinSize, err = cmn.S2B(c.String("minsize")); err != nil {
			return
		}
	}
	if spec.MaxSize == 0 {
		if spec.MaxSize, err = cmn.S2B(c.String("maxsize")); err != nil {
			return
		}
	}
	if spec.HeapBytes == 0 && c.String("heap-bytes") != "" {
		if spec.HeapBytes, err = cmn.S2B(c.String("heap-bytes")); err != nil {
			return
		}
	}
	if spec.Policy == "" {
		spec.Policy = c.String("policy")
	}
	if spec.Hold == 0 {
		spec.Hold = c.Int("hold")
	}
	spec.Verify = spec.Verify || c.Bool("verify")
	return
}
