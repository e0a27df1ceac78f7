// Command fixturegen writes this module's embedded Messier/NGC test
// catalogues to CSV files, so they can be fed to cmd/nway or cmd/server
// like any other catalogue instead of only being usable from Go tests.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/fixtures"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("out-dir", ".", "directory to write messier.csv and ngc.csv into")
	skyArea := flag.Float64("sky-area", 41253.0, "sky area in square degrees to record in each catalogue's header (41253 = full sky)")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("fixturegen: creating %q: %w", *dir, err)
	}

	messierPath := filepath.Join(*dir, "messier.csv")
	if err := catalogio.WriteCSV(messierPath, fixtures.ToTable(*skyArea)); err != nil {
		return fmt.Errorf("fixturegen: writing %q: %w", messierPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", messierPath)

	ngcPath := filepath.Join(*dir, "ngc.csv")
	if err := catalogio.WriteCSV(ngcPath, fixtures.ToNGCTable(*skyArea)); err != nil {
		return fmt.Errorf("fixturegen: writing %q: %w", ngcPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", ngcPath)

	return nil
}
