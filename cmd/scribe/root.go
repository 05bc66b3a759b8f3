package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/catalog"
	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/pipeline"
	"github.com/MrWong99/scribe/internal/project"
	"github.com/MrWong99/scribe/internal/vocab"
	"github.com/MrWong99/scribe/pkg/engine"
)

// defaultConfigPath is read when present; --config makes the file mandatory.
const defaultConfigPath = "scribe.yaml"

type rootFlags struct {
	configPath  string
	outputRoot  string
	logLevel    string
	engine      string
	device      string
	computeType string
	language    string
}

// load reads the configuration and applies the command line overrides.
func (f *rootFlags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadOptional(defaultConfigPath)
	}
	if err != nil {
		return nil, err
	}

	if f.outputRoot != "" {
		cfg.OutputRoot = f.outputRoot
	}
	if f.logLevel != "" {
		cfg.Log.Level = config.LogLevel(f.logLevel)
	}
	if f.engine != "" {
		cfg.Engine.Name = f.engine
	}
	if f.device != "" {
		cfg.Engine.Device = f.device
	}
	if f.computeType != "" {
		cfg.Engine.ComputeType = f.computeType
	}
	if f.language != "" {
		cfg.Engine.Language = f.language
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newRootCmd creates the root command. With two positional arguments it
// transcribes; subcommands inspect finished projects.
func newRootCmd(env *environment) *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:   "scribe <audioFile> <modelSize>",
		Short: "Transcribe audio into a project directory",
		Long: "Transcribe an audio file with a speech-to-text engine. The audio is copied into\n" +
			"<output-root>/<name>_<YYYYMMDD_HHMMSS>/ next to the normalized transcript.json.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &usageError{
					err:   fmt.Errorf("expected <audioFile> <modelSize>, got %d argument(s)", len(args)),
					usage: cmd.UsageString(),
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd.Context(), env, f, args[0], args[1])
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err, usage: cmd.UsageString()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to the YAML configuration file (default "+defaultConfigPath+" when present)")
	pf.StringVar(&f.outputRoot, "output-root", "", "directory project directories are created in (default "+config.DefaultOutputRoot+")")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")

	fl := root.Flags()
	fl.StringVar(&f.engine, "engine", "", "speech-to-text engine: whisperx, whisper-server, whisper-native, deepgram, openai")
	fl.StringVar(&f.device, "device", "", "compute device: auto, cpu, cuda")
	fl.StringVar(&f.computeType, "compute-type", "", "numeric precision, e.g. float16, int8")
	fl.StringVar(&f.language, "language", "", "language hint; empty auto-detects")

	root.AddCommand(newListCmd(env, f))
	root.AddCommand(newReviewCmd(env, f))
	root.AddCommand(newSchemaCmd(env))

	return root
}

func runTranscribe(ctx context.Context, env *environment, f *rootFlags, audioPath, modelSize string) error {
	cfg, err := f.load()
	if err != nil {
		// No configured logger yet; report on stdout like every other failure.
		observe.NewLogger(env.stdout, string(config.LogInfo), string(config.LogFormatText)).
			Error("loading configuration failed", "err", err)
		return &failure{err: err}
	}

	out := env.stdout
	if cfg.Log.Output == config.LogStderr {
		out = env.stderr
	}
	logger := observe.NewLogger(out, string(cfg.Log.Level), string(cfg.Log.Format))

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		return &failure{err: err}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		return &failure{err: err}
	}
	if path := cfg.Telemetry.MetricsFile; path != "" {
		defer func() {
			if err := tel.WriteTextfile(path); err != nil {
				logger.Warn("writing metrics file", "path", path, "err", err)
			}
		}()
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	env.registerFn(reg, engineDeps{
		logger:  logger,
		metrics: metrics,
		getenv:  env.getenv,
		terms:   cfg.Vocabulary.Terms,
	})
	eng, err := reg.CreateEngine(cfg.Engine)
	if err != nil {
		logger.Error("engine setup failed", "stage", string(pipeline.StageLoadModel), "engine", cfg.Engine.Name, "err", err)
		return &failure{err: err}
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var managerOpts []project.Option
	if cfg.Project.UniqueSuffix {
		managerOpts = append(managerOpts, project.WithUniqueSuffix())
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithManager(project.NewManager(managerOpts...)),
		pipeline.WithReviewThreshold(cfg.Review.ConfidenceThreshold),
	}
	if len(cfg.Vocabulary.Terms) > 0 {
		opts = append(opts, pipeline.WithCorrector(vocab.New(cfg.Vocabulary.Terms,
			vocab.WithPhoneticThreshold(cfg.Vocabulary.PhoneticThreshold),
			vocab.WithFuzzyThreshold(cfg.Vocabulary.FuzzyThreshold),
		)))
	}
	if dsn := cfg.Catalog.PostgresDSN; dsn != "" {
		store, err := catalog.OpenPostgres(ctx, dsn)
		if err != nil {
			logger.Warn("catalog unavailable, project will not be recorded", "err", err)
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithCatalog(store))
		}
	}

	if modelSize == "" {
		modelSize = cfg.Engine.Model
	}
	res, err := pipeline.New(eng, opts...).Run(ctx, pipeline.Request{
		AudioPath:  audioPath,
		OutputRoot: cfg.OutputRoot,
		EngineName: cfg.Engine.Name,
		Model: engine.ModelSpec{
			Name:        modelName(modelSize),
			Device:      cfg.Engine.Device,
			ComputeType: cfg.Engine.ComputeType,
			Language:    cfg.Engine.Language,
		},
	})
	if err != nil {
		return &failure{err: err}
	}

	fmt.Fprintf(env.stdout, "PROJECT_DIR:%s\n", res.Project.Dir)
	return nil
}

// modelName lowercases a model size such as "Base". Paths to model files
// keep their case.
func modelName(s string) string {
	if strings.ContainsRune(s, '/') || strings.ContainsRune(s, os.PathSeparator) {
		return s
	}
	return strings.ToLower(s)
}
