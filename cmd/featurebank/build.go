package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	featurebank "github.com/k-tonal/featurebank"
	"github.com/k-tonal/featurebank/extract"
	"github.com/k-tonal/featurebank/store"
)

func newBuildCmd() *cobra.Command {
	var (
		configPath    string
		out           string
		roots         []string
		files         []string
		exts          []string
		workers       int
		lenient       bool
		removeSources bool
		compression   string
		verbose       bool

		feature    string
		fftSize    int
		hop        int
		sampleRate int
		windowName string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract features from sources and build one aggregate bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			// Flags the user set win over the config file.
			flagSet := cmd.Flags().Changed
			if !flagSet("out") && cfg.Out != "" {
				out = cfg.Out
			}
			if !flagSet("root") {
				roots = append(roots, cfg.Roots...)
			}
			if !flagSet("file") {
				files = append(files, cfg.Files...)
			}
			if !flagSet("ext") && len(cfg.Extensions) > 0 {
				exts = cfg.Extensions
			}
			if !flagSet("workers") && cfg.Workers > 0 {
				workers = cfg.Workers
			}
			if !flagSet("lenient") {
				lenient = cfg.Lenient
			}
			if !flagSet("remove-sources") {
				removeSources = cfg.RemoveSources
			}
			if !flagSet("compression") && cfg.Compression != "" {
				compression = cfg.Compression
			}
			if !flagSet("feature") && cfg.STFT.Feature != "" {
				feature = cfg.STFT.Feature
			}
			if !flagSet("fft-size") && cfg.STFT.FFTSize > 0 {
				fftSize = cfg.STFT.FFTSize
			}
			if !flagSet("hop") && cfg.STFT.Hop > 0 {
				hop = cfg.STFT.Hop
			}
			if !flagSet("sample-rate") && cfg.STFT.SampleRate > 0 {
				sampleRate = cfg.STFT.SampleRate
			}
			if !flagSet("window") && cfg.STFT.Window != "" {
				windowName = cfg.STFT.Window
			}

			if out == "" {
				return fmt.Errorf("an output path is required (--out or config)")
			}

			enc, err := store.ParseEncoding(compression)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}

			stft := extract.NewSTFT(
				extract.WithFeatureName(feature),
				extract.WithFFTSize(fftSize),
				extract.WithHop(hop),
				extract.WithSampleRate(sampleRate),
				extract.WithWindow(windowName),
			)

			res, err := featurebank.New(out,
				featurebank.WithRoots(roots...),
				featurebank.WithFiles(files...),
				featurebank.WithExtensions(exts...),
				featurebank.WithWorkers(workers),
				featurebank.WithLenient(lenient),
				featurebank.WithRemoveSources(removeSources),
				featurebank.WithCompression(enc),
				featurebank.WithExtractor(stft),
				featurebank.WithLogLevel(level),
			).Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("built %s: %d features from %d sources", res.Path, len(res.Features), len(res.Sources))
			if len(res.Failed) > 0 {
				fmt.Printf(" (%d excluded)", len(res.Failed))
			}
			fmt.Println()
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVarP(&out, "out", "o", "", "output path of the aggregate bank")
	f.StringArrayVar(&roots, "root", nil, "root directory to walk (repeatable)")
	f.StringArrayVar(&files, "file", nil, "explicit source file (repeatable)")
	f.StringSliceVar(&exts, "ext", nil, "accepted source extensions")
	f.IntVarP(&workers, "workers", "w", 0, "concurrent extraction workers (default GOMAXPROCS)")
	f.BoolVar(&lenient, "lenient", false, "exclude failed sources instead of failing the build")
	f.BoolVar(&removeSources, "remove-sources", false, "delete per-source stores after a full success")
	f.StringVar(&compression, "compression", "raw", "per-source dataset encoding: raw, zstd or lz4")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	f.StringVar(&feature, "feature", "stft", "name of the extracted dense feature")
	f.IntVar(&fftSize, "fft-size", extract.DefaultFFTSize, "STFT frame length in samples")
	f.IntVar(&hop, "hop", extract.DefaultHop, "STFT hop length in samples")
	f.IntVar(&sampleRate, "sample-rate", extract.DefaultSampleRate, "sample rate recorded in the feature attributes")
	f.StringVar(&windowName, "window", extract.DefaultWindow, "analysis window: hann, hamming, blackman or rect")

	return cmd
}
