package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/gplmt/pkg/descriptor"
	"github.com/cuemby/gplmt/pkg/events"
	"github.com/cuemby/gplmt/pkg/log"
	"github.com/cuemby/gplmt/pkg/metrics"
	"github.com/cuemby/gplmt/pkg/testbed"
	"github.com/cuemby/gplmt/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:     "gplmt <experiment-file>",
	Short:   "gplmt runs SSH/local orchestration experiments against a node fleet",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runExperiment,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gplmt version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().Bool("dry", false, "Parse and validate the experiment description only, run nothing")
	rootCmd.Flags().Bool("batch", false, "Fail on interactive prompts instead of asking")
	rootCmd.Flags().String("logroot-dir", "", "Root directory for per-run stdout/stderr log files")
	rootCmd.Flags().Float64("ssh-cooldown", 1.0, "Minimum seconds between new SSH handshakes")
	rootCmd.Flags().Int("ssh-parallelism", 30, "Maximum concurrent SSH connections in flight")
	rootCmd.Flags().String("rng", "", "Optional experiment-tree schema path (accepted, not yet validated against)")
	rootCmd.Flags().String("config", "", "Optional gplmt.yaml defaults file, applied before flag overrides")
	rootCmd.Flags().String("metrics-addr", "", "If set, serve Prometheus metrics on this address")
	rootCmd.Flags().String("health-addr", "", "If set, serve /health, /ready, /live on this address")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// fileDefaults mirrors the subset of flags a gplmt.yaml can seed;
// anything left zero-valued leaves the flag's own default untouched.
type fileDefaults struct {
	SSHParallelism int     `yaml:"ssh-parallelism"`
	SSHCooldown    float64 `yaml:"ssh-cooldown"`
	LogrootDir     string  `yaml:"logroot-dir"`
}

// applyConfigFile seeds flag defaults from path, the same "config file
// seeds flag defaults, explicit flags still win" layering several CLIs
// in the retrieval pack use -- only flags the user never set on the
// command line are overridden, so `--config defaults.yaml
// --ssh-parallelism 5` still honors the explicit 5.
func applyConfigFile(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &types.SetupError{Message: "could not read config file", Cause: err}
	}
	var cfg fileDefaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &types.SetupError{Message: "could not parse config file", Cause: err}
	}

	if cfg.SSHParallelism != 0 && !cmd.Flags().Changed("ssh-parallelism") {
		_ = cmd.Flags().Set("ssh-parallelism", fmt.Sprintf("%d", cfg.SSHParallelism))
	}
	if cfg.SSHCooldown != 0 && !cmd.Flags().Changed("ssh-cooldown") {
		_ = cmd.Flags().Set("ssh-cooldown", fmt.Sprintf("%g", cfg.SSHCooldown))
	}
	if cfg.LogrootDir != "" && !cmd.Flags().Changed("logroot-dir") {
		_ = cmd.Flags().Set("logroot-dir", cfg.LogrootDir)
	}
	return nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if err := applyConfigFile(cmd, configPath); err != nil {
			return err
		}
	}

	dry, _ := cmd.Flags().GetBool("dry")
	logrootDir, _ := cmd.Flags().GetString("logroot-dir")
	sshCooldown, _ := cmd.Flags().GetFloat64("ssh-cooldown")
	sshParallelism, _ := cmd.Flags().GetInt("ssh-parallelism")
	rngSchema, _ := cmd.Flags().GetString("rng")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	healthAddr, _ := cmd.Flags().GetString("health-addr")

	if rngSchema != "" {
		if _, err := os.Stat(rngSchema); err != nil {
			return &types.SetupError{Message: "could not read experiment-tree schema", Cause: err}
		}
		log.Logger.Warn().Str("schema", rngSchema).Msg("schema validation against --rng is not implemented, accepting unchecked")
	}

	desc, err := descriptor.LoadFile(args[0])
	if err != nil {
		return err
	}
	if len(desc.Steps) == 0 {
		return &noStepsError{}
	}

	if dry {
		log.Logger.Info().Int("nodes", len(desc.Nodes)).Int("tasklists", len(desc.Tasklists)).Int("steps", len(desc.Steps)).Msg("experiment description is valid")
		return nil
	}

	metrics.RegisterComponent("targets", true, fmt.Sprintf("%d nodes, %d groups", len(desc.Nodes), len(desc.Groups)))

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	stopProgress := streamProgressLines(broker)
	defer stopProgress()

	tb := testbed.New(testbed.Config{
		SSHParallelism: sshParallelism,
		SSHCooldown:    time.Duration(sshCooldown * float64(time.Second)),
		LogRoot:        logrootDir,
		Nodes:          desc.Nodes,
		Groups:         desc.Groups,
		Tasklists:      desc.Tasklists,
		Events:         broker,
	})
	metrics.RegisterComponent("connect", true, "governor ready")

	collector := metrics.NewCollector(tb)
	collector.Start()
	defer collector.Stop()

	stopDebugServers := serveDebugEndpoints(metricsAddr, healthAddr)
	defer stopDebugServers()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := tb.Run(ctx, desc.Steps); err != nil {
		log.Logger.Error().Err(err).Msg("experiment ended early; teardowns were run")
	}
	return nil
}

// streamProgressLines subscribes to the run's event broker and prints
// one line per task/transfer/teardown lifecycle event to stderr, the
// CLI's equivalent of the progress ticker the original implementation
// prints while an experiment runs. It returns a func that unsubscribes
// and waits for the printer goroutine to drain.
func streamProgressLines(broker *events.Broker) func() {
	sub := broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range sub {
			fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", evt.Type, evt.Node, evt.Message)
		}
	}()
	return func() {
		broker.Unsubscribe(sub)
		<-done
	}
}

// serveDebugEndpoints starts the optional metrics/health HTTP servers
// and returns a func that shuts them down.
func serveDebugEndpoints(metricsAddr, healthAddr string) func() {
	var servers []*http.Server

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		servers = append(servers, srv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	if healthAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		srv := &http.Server{Addr: healthAddr, Handler: mux}
		servers = append(servers, srv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Warn().Err(err).Msg("health server stopped")
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(ctx)
		}
	}
}

// noStepsError reports an experiment description with an empty step
// list -- exit code 2 per spec.md §6, distinct from a parse/setup
// failure (exit code 1).
type noStepsError struct{}

func (e *noStepsError) Error() string { return "experiment description has no steps" }

// exitCodeFor maps a run's terminal error to the process exit code
// spec.md §6 documents: 0 success, 1 setup/parse error, 2 no steps.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := err.(*noStepsError); ok {
		return 2
	}
	return 1
}
