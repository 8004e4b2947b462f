package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/navtrace/recfix/internal/catalog"
	"github.com/navtrace/recfix/internal/log"
	"github.com/navtrace/recfix/internal/pipeline"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	in := flag.String("in", "", "Path to a recording file or a directory tree of recordings")
	out := flag.String("out", "", "Destination root for repaired recordings")
	verbose := flag.Bool("verbose", false, "Print per-file defect findings and drop counters")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	catalogPath := flag.String("catalog", "", "Optional SQLite database recording run outcomes")
	ext := flag.String("ext", ".rec", "Recording file extension to process")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("recfix %s\n", version)
		os.Exit(0)
	}

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "recfix repairs historical navtrace GPS/IMU recordings: converts pre-SI units,")
		fmt.Fprintln(os.Stderr, "removes broken-patch offsets, and drops duplicate and spurious records.")
		fmt.Fprintf(os.Stderr, "Usage: %s -in <recording|dir> -out <dir> [-verbose] [-catalog <db>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*in, *out, *ext, *catalogPath, *verbose); err != nil {
		log.Errorf("Repair run failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(in, out, ext, catalogPath string, verbose bool) error {
	var recorder pipeline.Recorder
	var cat *catalog.Catalog
	if catalogPath != "" {
		var err error
		cat, err = catalog.Open(catalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		recorder = cat
		log.Infof("recording outcomes to catalog %s, run %s", catalogPath, cat.RunID())
	}

	p := pipeline.New(pipeline.Options{
		InputPath:  in,
		OutputPath: out,
		Extension:  ext,
		Verbose:    verbose,
	}, log.GetSugaredLogger(), recorder)

	sum, err := p.Run()
	if err != nil {
		return err
	}
	if cat != nil {
		if err := cat.FinishRun(sum); err != nil {
			return err
		}
	}

	log.Infof("processed %d recordings: %d copied, %d rewritten, %d skipped, %d records dropped",
		sum.Scanned, sum.Copied, sum.Rewritten, sum.Skipped, sum.Dropped)
	return nil
}
