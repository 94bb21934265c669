// Command modle runs the loop-extrusion simulator over a genome described
// by a chrom.sizes file and a BED6 file of extrusion barriers, writing the
// resulting contact matrices to a sqlite or TSV store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dakristia/modleFork/internal/bedio"
	"github.com/dakristia/modleFork/internal/config"
	"github.com/dakristia/modleFork/internal/genome"
	"github.com/dakristia/modleFork/pkg/modle"
)

var log = logrus.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modle",
		Short:         "stochastic simulator of DNA loop extrusion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	root.AddCommand(simulateCmd())
	return root
}

func simulateCmd() *cobra.Command {
	var (
		configPath   string
		chromSizes   string
		barriersPath string
		subranges    string
		featuresPath string
		outputPath   string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulate loop extrusion and write contact matrices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if chromSizes == "" || barriersPath == "" {
				return fmt.Errorf("--chrom-sizes and --extrusion-barriers are required")
			}

			chroms, err := readChromSizes(chromSizes, subranges)
			if err != nil {
				return err
			}
			bars, err := readBarriers(barriersPath)
			if err != nil {
				return err
			}
			if featuresPath != "" {
				// Feature intervals only drive targeted runs; parse them to
				// surface format errors early.
				if err := readFeatures(featuresPath); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			writerKind := outputFormat
			if cfg.SkipOutput {
				writerKind = "discard"
			}
			w, err := modle.NewWriter(ctx, writerKind, outputPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := w.Close(); err != nil {
					log.WithError(err).Error("closing output writer")
				}
			}()

			log.WithFields(logrus.Fields{
				"chromosomes": len(chroms),
				"barriers":    len(bars),
				"threads":     cfg.NThreads,
				"seed":        cfg.Seed,
			}).Info("starting simulation")
			return modle.Run(ctx, cfg, chroms, bars, w, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&chromSizes, "chrom-sizes", "", "chrom.sizes file")
	flags.StringVar(&barriersPath, "extrusion-barriers", "", "BED6 file of extrusion barriers")
	flags.StringVar(&subranges, "chrom-subranges", "", "BED3 file restricting simulated ranges")
	flags.StringVar(&featuresPath, "features", "", "BED file of feature intervals")
	flags.StringVarP(&outputPath, "output", "o", "contacts.sqlite", "output path")
	flags.StringVar(&outputFormat, "output-format", "sqlite", "sqlite or tsv")

	flags.Uint64("bin-size", 0, "matrix resolution in bp")
	flags.Uint64("diagonal-width", 0, "band width in bp")
	flags.Int("ncells", 0, "independent replicates per chromosome")
	flags.Float64("lefs-per-mbp", 0, "LEF density")
	flags.Uint64("avg-lef-lifetime", 0, "average LEF lifetime in bp")
	flags.Float64("target-contact-density", 0, "stop once this density is reached")
	flags.Int("iterations", 0, "stop after this many epochs")
	flags.Int("threads", 0, "worker threads")
	flags.Uint64("seed", 0, "global seed")
	flags.Bool("skip-burnin", false, "start contact sampling immediately")
	flags.Bool("skip-output", false, "run without persisting contacts")
	flags.Bool("write-contacts-for-ko-chroms", false, "simulate chromosomes without barriers")

	bind := func(key, flag string) {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	bind("bin_size", "bin-size")
	bind("diagonal_width", "diagonal-width")
	bind("num_cells", "ncells")
	bind("lefs_per_mbp", "lefs-per-mbp")
	bind("average_lef_lifetime", "avg-lef-lifetime")
	bind("target_contact_density", "target-contact-density")
	bind("simulation_iterations", "iterations")
	bind("nthreads", "threads")
	bind("seed", "seed")
	bind("skip_burnin", "skip-burnin")
	bind("skip_output", "skip-output")
	bind("write_contacts_for_ko_chroms", "write-contacts-for-ko-chroms")

	return cmd
}

// loadConfig layers defaults, the optional YAML file and flag overrides.
// Flags win over the file; the file wins over defaults.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	// Unset flags unmarshal as zero values: restore defaults for those.
	defaults := config.Default()
	if cfg.BinSize == 0 {
		cfg.BinSize = defaults.BinSize
	}
	if cfg.DiagonalWidth == 0 {
		cfg.DiagonalWidth = defaults.DiagonalWidth
	}
	if cfg.NumCells == 0 {
		cfg.NumCells = defaults.NumCells
	}
	if cfg.LefsPerMbp == 0 && cfg.NumLefs == 0 {
		cfg.LefsPerMbp = defaults.LefsPerMbp
	}
	if cfg.AvgLefLifetime == 0 {
		cfg.AvgLefLifetime = defaults.AvgLefLifetime
	}
	if cfg.RevExtrusionSpeed == 0 && cfg.FwdExtrusionSpeed == 0 {
		cfg.RevExtrusionSpeed = defaults.RevExtrusionSpeed
		cfg.FwdExtrusionSpeed = defaults.FwdExtrusionSpeed
		cfg.RevExtrusionSpeedStd = defaults.RevExtrusionSpeedStd
		cfg.FwdExtrusionSpeedStd = defaults.FwdExtrusionSpeedStd
	}
	if cfg.CTCFNotOccupiedSelfProb == 0 {
		cfg.CTCFNotOccupiedSelfProb = defaults.CTCFNotOccupiedSelfProb
	}
	if cfg.HardStallMultiplier == 0 {
		cfg.HardStallMultiplier = defaults.HardStallMultiplier
	}
	if cfg.SoftStallMultiplier == 0 {
		cfg.SoftStallMultiplier = defaults.SoftStallMultiplier
	}
	if cfg.TargetContactDensity == 0 && cfg.SimulationIterations == 0 {
		cfg.TargetContactDensity = defaults.TargetContactDensity
	}
	if cfg.ContactSamplingInterval == 0 {
		cfg.ContactSamplingInterval = defaults.ContactSamplingInterval
	}
	if cfg.NThreads == 0 {
		cfg.NThreads = defaults.NThreads
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogger(cmd *cobra.Command) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, _ := cmd.Flags().GetString("log-level")
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func readChromSizes(path, subrangesPath string) ([]genome.ChromRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	chroms, err := bedio.ReadChromSizes(f)
	if err != nil {
		return nil, err
	}
	if subrangesPath == "" {
		return chroms, nil
	}
	sf, err := os.Open(subrangesPath)
	if err != nil {
		return nil, err
	}
	defer sf.Close()
	return bedio.ApplySubranges(chroms, sf)
}

func readBarriers(path string) ([]genome.BarrierRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bedio.ReadBarriers(f)
}

func readFeatures(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = bedio.ReadFeatures(f)
	return err
}
