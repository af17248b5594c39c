package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"briefbot/internal/app"
	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "briefbot",
	Short: "Daily AI newsletter briefings over Telegram",
	Long: `briefbot fetches the TLDR AI newsletter, summarizes it with Claude and
delivers the briefing to Telegram chats. A run-state ledger makes runs
idempotent: missed weekdays are caught up automatically and a date is only
marked done once every recipient got the full briefing.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process all pending dates once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(cfgPath)
		if err != nil {
			return err
		}
		defer a.Close()

		rep := a.RunOnce(ctx)
		a.Log().Info("run finished",
			logx.Int("planned", rep.Planned), logx.Int("delivered", rep.Delivered),
			logx.Int("skipped", rep.Skipped), logx.Int("failed", rep.Failed))
		if rep.Failed > 0 {
			return fmt.Errorf("%d of %d dates failed", rep.Failed, rep.Planned)
		}
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run on the configured cron schedule until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(cfgPath)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.StartDaemon(ctx)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the dates a run would process, without processing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(cfgPath)
		if err != nil {
			return err
		}
		defer a.Close()

		pending := a.Pending(ctx)
		if len(pending) == 0 {
			fmt.Println("nothing pending")
			return nil
		}
		for _, d := range pending {
			fmt.Println(d)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <date>",
	Short: "Process a single date regardless of ledger state",
	Long: `Process one date (YYYY-MM-DD) end to end and deliver the briefing.
The ledger is updated on success, so a later run will not repeat the date.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := plan.ParseDate(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(cfgPath)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.RunDate(ctx, d)
		switch {
		case res.Err != nil:
			return res.Err
		case res.Skipped:
			fmt.Printf("no issue published for %s\n", d)
		default:
			fmt.Printf("delivered %s in %d part(s)\n", d, res.Parts)
		}
		return nil
	},
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config file (yaml or json)")
	rootCmd.AddCommand(runCmd, daemonCmd, planCmd, sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
