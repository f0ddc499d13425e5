package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nlc9-swarm/internal/config"
	"nlc9-swarm/internal/execution"
	"nlc9-swarm/internal/market"
	"nlc9-swarm/internal/metrics"
	"nlc9-swarm/internal/nlc9"
	"nlc9-swarm/internal/swarm"
	"nlc9-swarm/internal/util"
)

var (
	cfgPath     string
	presetName  string
	duration    time.Duration
	fleetCounts config.RoleCounts
)

var rootCmd = &cobra.Command{
	Use:           "swarm",
	Short:         "Run and manage an NLC-9 trading agent fleet",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fleet and trade until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // best-effort
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var genconfigCmd = &cobra.Command{
	Use:   "genconfig [output.yaml]",
	Short: "Write a preset or custom fleet configuration to disk",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := genFleet()
		if err != nil {
			return err
		}
		out := "swarm.yaml"
		if len(args) == 1 {
			out = args[0]
		}
		if err := config.Save(out, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d agents)\n", out, len(cfg.Agents))
		return nil
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in fleet presets",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range config.PresetNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "fleet configuration file")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "built-in fleet preset")
	runCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long (0 runs until interrupted)")
	genconfigCmd.Flags().IntVar(&fleetCounts.Leaders, "leaders", 0, "leader agents")
	genconfigCmd.Flags().IntVar(&fleetCounts.Followers, "followers", 0, "follower agents")
	genconfigCmd.Flags().IntVar(&fleetCounts.Arbitrage, "arbitrage", 0, "arbitrage agents")
	genconfigCmd.Flags().IntVar(&fleetCounts.MarketMakers, "market-makers", 0, "market maker agents")
	genconfigCmd.Flags().IntVar(&fleetCounts.Scouts, "scouts", 0, "scout agents")
	genconfigCmd.Flags().IntVar(&fleetCounts.Liquidators, "liquidators", 0, "liquidator agents")
	rootCmd.AddCommand(runCmd, genconfigCmd, presetsCmd)
}

// genFleet builds the genconfig output: explicit role counts when any count
// flag is set, a named preset otherwise.
func genFleet() (*config.Config, error) {
	if fleetCounts != (config.RoleCounts{}) {
		if presetName != "" {
			return nil, fmt.Errorf("--preset and role count flags are mutually exclusive")
		}
		return config.Generate(fleetCounts), nil
	}
	name := presetName
	if name == "" {
		name = "balanced-fleet"
	}
	return config.Preset(name)
}

func loadConfig() (*config.Config, error) {
	switch {
	case cfgPath != "" && presetName != "":
		return nil, fmt.Errorf("--config and --preset are mutually exclusive")
	case cfgPath != "":
		return config.Load(cfgPath)
	case presetName != "":
		return config.Preset(presetName)
	default:
		return config.Preset("balanced-fleet")
	}
}

func run(cfg *config.Config) error {
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, err := buildMarket(ctx, cfg, log)
	if err != nil {
		return err
	}
	exec, cleanup, err := buildExecutor(cfg, source, log)
	if err != nil {
		return err
	}
	defer cleanup()

	coord := swarm.New(swarm.Options{
		Mode:               swarm.Mode(strings.ToUpper(cfg.Swarm.Mode)),
		ConsensusThreshold: cfg.Swarm.ConsensusThreshold,
		BallotTTL:          cfg.Swarm.BallotTTL(),
		TickInterval:       cfg.Swarm.TickInterval(),
		EmergencyStop:      cfg.Swarm.EmergencyStop,
		ProfitSharing:      cfg.Swarm.ProfitSharing,
	}, cfg.Agents, swarm.Deps{
		Market: source,
		Exec:   exec,
		Codec:  nlc9.New(log),
		Log:    log,
	})

	coord.Start(ctx)
	if duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
			log.Info().Dur("duration", duration).Msg("run window elapsed")
			cancel()
		}
	} else {
		<-ctx.Done()
	}
	coord.Stop()
	return nil
}

func buildMarket(ctx context.Context, cfg *config.Config, log zerolog.Logger) (market.Source, error) {
	seed := cfg.Market.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	stub := market.NewStub(cfg.Market.Pairs, seed)

	switch strings.ToLower(cfg.Market.Provider) {
	case "", "stub":
		return stub, nil
	case "binance":
		feed := market.NewLiveFeed(stub, cfg.Market.Symbols, log)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("live feed stopped")
			}
		}()
		return feed, nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Market.Provider)
	}
}

func buildExecutor(cfg *config.Config, source market.Source, log zerolog.Logger) (execution.Executor, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.Execution.Venue) {
	case "", "paper":
		var recorder execution.Recorder
		cleanup := noop
		if cfg.Execution.FillsPath != "" {
			jsonl, err := execution.NewJSONLRecorder(cfg.Execution.FillsPath)
			if err != nil {
				return nil, nil, err
			}
			recorder = jsonl
			cleanup = func() { _ = jsonl.Close() }
		}
		exec := execution.NewPaperExecutor(source, recorder, log, time.Now().UnixNano())
		if cfg.Execution.FailureRate > 0 {
			exec.FailureRate = cfg.Execution.FailureRate
		}
		if cfg.Execution.SlippageBps > 0 {
			exec.SlippageBps = float64(cfg.Execution.SlippageBps)
		}
		return exec, cleanup, nil
	case "jupiter":
		wallet, err := execution.LoadWalletFromEnv()
		if err != nil {
			return nil, nil, err
		}
		dex := cfg.Execution.Dex
		mints := make(map[string]execution.PairMints, len(dex.Mints))
		for pair, m := range dex.Mints {
			mints[pair] = execution.PairMints{
				Input:          m.Input,
				Output:         m.Output,
				InputDecimals:  m.InputDecimals,
				OutputDecimals: m.OutputDecimals,
			}
		}
		exec := execution.NewJupiterExecutor(dex.RpcURL, dex.JupiterBase, wallet, dex.Commitment, mints, log)
		return exec, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown execution venue %q", cfg.Execution.Venue)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
