// Command nway runs a single cross-identification job from the command
// line: load a YAML config, read its catalogues, score every candidate
// association, and write the annotated result table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/progress"
	"github.com/astrocross/nway/internal/xconfig"
	"github.com/astrocross/nway/internal/xmatch"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("nway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML run configuration (required)")
	radius := fs.Float64("radius", 0, "override radius_arcsec from the config")
	out := fs.String("out", "", "override the output path from the config")
	acceptableProb := fs.Float64("acceptable-prob", xconfig.DefaultAcceptableProb, "override acceptable_prob from the config")
	minProb := fs.Float64("min-prob", xconfig.DefaultMinProb, "override min_prob from the config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("nway: -config is required")
	}

	cfg, err := xconfig.Load(*configPath)
	if err != nil {
		return err
	}

	var override xconfig.Override
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "radius":
			override.RadiusArcsec = radius
		case "out":
			override.Out = out
		case "acceptable-prob":
			override.AcceptableProb = acceptableProb
		case "min-prob":
			override.MinProb = minProb
		}
	})
	cfg = override.Apply(cfg)
	if err := xconfig.Validate(cfg); err != nil {
		return err
	}

	tables := make([]catalogio.Table, len(cfg.Catalogues))
	for i, entry := range cfg.Catalogues {
		t, err := catalogio.ReadCSV(entry.Path)
		if err != nil {
			return fmt.Errorf("nway: loading catalogue %q: %w", entry.Name, err)
		}
		tables[i] = t
	}

	reporter := progress.NewStderrReporter()
	pipe := xmatch.NewPipeline(cfg, nil, reporter)

	res, err := pipe.Run(context.Background(), "cli", tables)
	if err != nil {
		if errors.Is(err, xmatch.ErrNoMatches) {
			fmt.Fprintln(os.Stderr, "No matches.")
			os.Exit(1)
		}
		return err
	}

	if err := xmatch.WriteResultCSV(cfg.Out, res, cfg.MinProb); err != nil {
		return fmt.Errorf("nway: writing result: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", cfg.Out)
	return nil
}
