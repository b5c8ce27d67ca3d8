package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/rxstore/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Replay a scenario file",
	Long: `Loads a scenario (YAML or JSON), dispatches its actions to a fresh store and
prints every state on stdout, one JSON document per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		logger, err := cli.NewLogger(level)
		if err != nil {
			return err
		}

		sc, err := cli.LoadScenario(args[0])
		if err != nil {
			return err
		}
		if limit, _ := cmd.Flags().GetInt("cascade-limit"); cmd.Flags().Changed("cascade-limit") {
			sc.CascadeLimit = limit
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := cli.RunScenario(ctx, sc, cli.RunOptions{
			Logger: logger,
			Hooks:  cli.DebugHooks(logger),
			Output: cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		logger.Info("Scenario finished", "scenario", sc.Name, "states", res.States, "items", len(res.Final.Items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int("cascade-limit", 0, "Override the scenario cascade limit (0 disables the guard)")
}
