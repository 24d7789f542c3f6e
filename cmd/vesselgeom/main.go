package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/pkg/analysis"
	"vesselgeom/pkg/config"
	"vesselgeom/pkg/export"
	"vesselgeom/pkg/scanio"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when missing)")
	headerPath := flag.String("header", "", "Scan header YAML describing the label volume")
	pointsPath := flag.String("points", "", "Optional CSV point cloud (x,y,z per line)")
	patientID := flag.String("patient", "patient", "Patient identifier used to namespace outputs")
	outDir := flag.String("out", "", "Output directory (overrides output.dir)")
	workers := flag.Int("workers", 0, "Vessels processed at once (overrides processing.workers)")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *headerPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	vol, err := scanio.LoadVolume(*headerPath)
	if err != nil {
		log.Fatalf("ERROR: Could not load segmentation: %v", err)
	}

	var points []r3.Vec
	if *pointsPath != "" {
		if points, err = scanio.LoadPoints(*pointsPath); err != nil {
			log.Printf("WARNING: Could not load point cloud: %v. Quality metrics will be skipped.", err)
			points = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := analysis.ParamsFromConfig(cfg)
	// The console already shows every status line below.
	params.Verbose = false
	analyzer := analysis.NewAnalyzer(params)

	startTime := time.Now()
	res, err := analyzer.Run(ctx, analysis.Input{
		Volume:    vol,
		Points:    points,
		PlotDir:   cfg.Output.Dir,
		PatientID: *patientID,
		Status:    func(msg string) { fmt.Println(msg) },
	})
	if err != nil && res == nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	if err != nil {
		log.Printf("Analysis interrupted: %v", err)
	}
	fmt.Printf("\nProcessed %d vessel(s) in %.2f seconds\n", len(res.Vessels), time.Since(startTime).Seconds())

	for _, rec := range res.Records() {
		fmt.Printf("\n%s (label %d)\n", rec.Name, rec.Label)
		m := rec.Metrics.Map()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-45s %v\n", k, m[k])
		}
		if ferr, ok := res.Failures[rec.Name]; ok {
			fmt.Printf("  failed: %v\n", ferr)
		}
	}

	sum, err := export.Write(cfg.Output.Dir, *patientID, res, export.Options{
		STL:  cfg.Output.WriteSTL,
		HTML: cfg.Output.WriteHTML,
	})
	if err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}
	fmt.Printf("\nResults (run %s) saved to: %s\n", sum.RunID, cfg.Output.Dir)
}
