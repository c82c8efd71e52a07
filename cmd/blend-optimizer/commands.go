package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/config"
	"github.com/iwvelando/blend-optimizer/internal/runner"
	"github.com/iwvelando/blend-optimizer/internal/server"
	"github.com/iwvelando/blend-optimizer/pkg/constants"
	"github.com/iwvelando/blend-optimizer/pkg/output"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) optimizer() (*blend.Optimizer, error) {
	params, err := c.conf.BlendParams()
	if err != nil {
		return nil, fmt.Errorf("invalid blend parameters: %w", err)
	}
	return blend.NewOptimizer(c.logger, params, nil, c.conf.SolverOptions(c.logger)), nil
}

// solve runs one request and prints its summary. Non-optimal outcomes are
// printed like any other result; only errors fail the command.
func (c *cli) solve(ctx context.Context, name string, req blend.Request) error {
	opt, err := c.optimizer()
	if err != nil {
		return err
	}
	req.TimeLimit = c.timeLimit

	start := time.Now()
	res, err := opt.Optimize(ctx, req)
	if err != nil {
		return err
	}

	c.logger.Debug("request solved",
		zap.String("op", "main.solve"),
		zap.String("operation", string(res.Operation)),
		zap.Stringer("status", res.Status),
	)

	return output.Write(c.out, c.outputFormat, runner.Summarize(name, res, time.Since(start)))
}

func loadMixFlag(path string) (blend.Composition, error) {
	if path == "" {
		return nil, fmt.Errorf("--mix is required")
	}
	return config.LoadMix(path)
}

func (c *cli) refuelCommand() *cobra.Command {
	var (
		mixPath string
		target  float64
	)
	cmd := &cobra.Command{
		Use:   "refuel",
		Short: "Top up an existing charge within the refuel cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mix, err := loadMixFlag(mixPath)
			if err != nil {
				return err
			}
			req := blend.Request{Operation: blend.OperationRefuel, Current: mix}
			if cmd.Flags().Changed("target") {
				req.TargetWeight = &target
			}
			return c.solve(cmd.Context(), "refuel", req)
		},
	}
	cmd.Flags().StringVar(&mixPath, "mix", "", "path to the mix file of the current charge")
	cmd.Flags().Float64Var(&target, "target", 0, "target total weight in kg")
	return cmd
}

func (c *cli) newBlendCommand() *cobra.Command {
	var (
		weight  float64
		require []string
	)
	cmd := &cobra.Command{
		Use:   "new-blend",
		Short: "Synthesize a blend from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := blend.Request{Operation: blend.OperationNewBlend}
			if cmd.Flags().Changed("weight") {
				req.TargetWeight = &weight
			}
			if cmd.Flags().Changed("require") {
				required, err := blend.ParseElements(strings.Join(require, ","))
				if err != nil {
					return err
				}
				req.Require = required
			}
			return c.solve(cmd.Context(), "new_blend", req)
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 0, "weight of the blend in kg")
	cmd.Flags().StringSliceVar(&require, "require", nil, "elements that must be present (default all)")
	return cmd
}

func (c *cli) optimiseCommand(op blend.Operation) *cobra.Command {
	var (
		mixPath string
		target  float64
	)
	use, short := "optimise", "Reach a target weight by removal, capped addition and fresh production"
	if op == blend.OperationAuto {
		use, short = "auto", "Alias of optimise"
	}
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    cobra.NoArgs,
		Aliases: aliasesFor(op),
		RunE: func(cmd *cobra.Command, _ []string) error {
			mix, err := loadMixFlag(mixPath)
			if err != nil {
				return err
			}
			req := blend.Request{Operation: op, Current: mix}
			if cmd.Flags().Changed("target") {
				req.TargetWeight = &target
			}
			return c.solve(cmd.Context(), use, req)
		},
	}
	cmd.Flags().StringVar(&mixPath, "mix", "", "path to the mix file of the current charge")
	cmd.Flags().Float64Var(&target, "target", 0, "target total weight in kg")
	return cmd
}

func aliasesFor(op blend.Operation) []string {
	if op == blend.OperationOptimiseMixture {
		return []string{"optimize", "optimise-mixture"}
	}
	return nil
}

func (c *cli) maxAdditionsCommand() *cobra.Command {
	var mixPath string
	cmd := &cobra.Command{
		Use:   "max-additions",
		Short: "Show the largest addition allowed per element",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mix, err := loadMixFlag(mixPath)
			if err != nil {
				return err
			}
			current, err := blend.ValidateComposition(mix)
			if err != nil {
				return err
			}
			opt, err := c.optimizer()
			if err != nil {
				return err
			}

			limits := make(map[string]float64, len(blend.Elements))
			for e, mass := range opt.MaxAdditions(current) {
				limits[string(e)] = mass
			}
			return output.Write(c.out, c.outputFormat, limits)
		},
	}
	cmd.Flags().StringVar(&mixPath, "mix", "", "path to the mix file of the current charge")
	return cmd
}

func (c *cli) batchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Solve every active scenario of the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := runner.NewRunner(c.logger, c.conf, nil)
			if err != nil {
				return err
			}
			result, err := r.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to run scenarios: %w", err)
			}
			if result.Empty() {
				c.logger.Warn("no active scenarios", zap.String("op", "main.batch"))
			}
			if err := output.Write(c.out, c.outputFormat, result.Summaries); err != nil {
				return err
			}
			if failed := result.Failed(); failed > 0 {
				return fmt.Errorf("%d scenario(s) failed", failed)
			}
			return nil
		},
	}
}

func (c *cli) serveCommand() *cobra.Command {
	var (
		serverConfigPath string
		address          string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimisation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			const op = "main.serve"

			serverCfg, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return err
			}
			if address != "" {
				serverCfg.Address = address
			}

			// The server file may carry its own logging section.
			if serverCfg.Logging != (config.LoggingConfig{}) {
				logger, err := initializeLogger(serverCfg.Logging, c.logLevel)
				if err != nil {
					return fmt.Errorf("failed to initialize server logger: %w", err)
				}
				_ = c.logger.Sync()
				c.logger = logger
			}

			opt, err := c.optimizer()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              serverCfg.Address,
				Handler:           server.NewHandler(c.logger, opt, serverCfg, version),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("listening",
					zap.String("op", op),
					zap.String("address", serverCfg.Address),
					zap.Int64("maxUploadSize", serverCfg.UploadSizeBytes()),
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			c.logger.Info("shutting down", zap.String("op", op))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}
