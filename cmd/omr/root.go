package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/answers"
	"github.com/ironsheep/omr-reader/internal/classify"
	"github.com/ironsheep/omr-reader/internal/imaging"
	"github.com/ironsheep/omr-reader/internal/pipeline"
	"github.com/ironsheep/omr-reader/internal/store"
)

// Options holds the pipeline flags shared by every command.
type Options struct {
	TemplateWidth  int
	TemplateHeight int
	Intensity      string
	PatchSize      int
	ModelPath      string
	ModelWorker    string
	ModelTimeout   time.Duration
	Threshold      float64
	Debug          bool
}

var (
	// DB is the optional store shared by subcommands; nil unless --store or
	// --db was given.
	DB *store.Store

	dbURL    string
	useStore bool
	opts     = Options{Threshold: answers.DefaultSelectionThreshold}
)

// Version information - set by ldflags during build
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "omr",
	Short:         "Optical mark recognition for bubble answer sheets",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		if os.Getenv("OMR_LOG_LEVEL") == "debug" {
			opts.Debug = true
		}

		if !useStore && dbURL == "" {
			return nil
		}
		if dbURL == "" {
			dbURL = store.ConnString()
		}

		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The command context may already be cancelled by Ctrl+C.
			DB.Close(context.Background())
		}
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbURL, "db", "", "PostgreSQL connection string (implies --store)")
	pf.BoolVar(&useStore, "store", false, "Connect to PostgreSQL using OMR_DATABASE_URL or POSTGRES_* variables")
	pf.IntVar(&opts.TemplateWidth, "template-width", imaging.DefaultTemplateWidth, "Template canvas width in pixels")
	pf.IntVar(&opts.TemplateHeight, "template-height", imaging.DefaultTemplateHeight, "Template canvas height in pixels")
	pf.StringVar(&opts.Intensity, "intensity", string(imaging.IntensityLuma), "Intensity model: luma or lightness")
	pf.IntVar(&opts.PatchSize, "patch-size", imaging.DefaultPatchSize, "Classifier patch size in pixels")
	pf.StringVar(&opts.ModelPath, "model", os.Getenv("OMR_MODEL_PATH"), "Fill classifier model file (intensity heuristic when empty)")
	pf.StringVar(&opts.ModelWorker, "model-worker", classify.DefaultWorkerCommand, "Model worker command; the model path is appended")
	pf.DurationVar(&opts.ModelTimeout, "model-timeout", classify.DefaultStartupTimeout, "How long the model worker may take to load before falling back to the heuristic")
	pf.BoolVar(&opts.Debug, "debug", false, "Log per-stage statistics")
}

// pipelineConfig builds a pipeline configuration from the shared flags.
func pipelineConfig(o Options) (pipeline.Config, error) {
	intensity, err := imaging.ParseIntensity(o.Intensity)
	if err != nil {
		return pipeline.Config{}, err
	}
	if o.TemplateWidth <= 0 || o.TemplateHeight <= 0 {
		return pipeline.Config{}, fmt.Errorf("template size must be positive, got %dx%d", o.TemplateWidth, o.TemplateHeight)
	}

	cfg := pipeline.DefaultConfig()
	cfg.Template = imaging.Template{Width: o.TemplateWidth, Height: o.TemplateHeight, Intensity: intensity}
	cfg.Classifier = classify.Options{
		PatchSize:      o.PatchSize,
		ModelPath:      o.ModelPath,
		WorkerCommand:  strings.Fields(o.ModelWorker),
		StartupTimeout: o.ModelTimeout,
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return pipeline.Config{}, fmt.Errorf("threshold must be in [0, 1], got %g", o.Threshold)
	}
	cfg.SelectionThreshold = o.Threshold
	cfg.Debug = o.Debug
	return cfg, nil
}

// newPipeline builds a pipeline from the shared flags. The caller closes it.
func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := pipelineConfig(opts)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg), nil
}
