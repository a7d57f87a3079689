package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/longshort/internal/audit"
	"github.com/wonny/longshort/internal/brain"
	"github.com/wonny/longshort/internal/strategyconfig"
)

// rebalanceCmd represents the rebalance command
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "리밸런스 1회 실행",
	Long: `보유 상태를 불러와 리밸런스를 1회 실행하고 새 상태를 저장합니다.

S1 Universe → S2 Factors → S3 Selection → S4 Risk Loadings → S5 Portfolio → S6 Execution

Universe가 min_size 미만이면 건너뛰고 기존 상태를 유지합니다.
제약조건을 만족하는 포트폴리오가 없으면 에러를 반환하고 기존 상태를 유지합니다.

Example:
  go run ./cmd/quant rebalance
  go run ./cmd/quant rebalance --date 2024-01-08
  go run ./cmd/quant rebalance --dry-run --json`,
	RunE: runRebalance,
}

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "일별 기록 (포지션 수, 익스포저)",
	Long: `보유 중인 목표 포트폴리오의 포지션 수와 gross/net 익스포저를 기록합니다.

Example:
  go run ./cmd/quant record
  go run ./cmd/quant record --date 2024-01-08`,
	RunE: runRecord,
}

var (
	// Flags
	runDate    string
	runDryRun  bool
	jsonOutput bool
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rootCmd.AddCommand(recordCmd)

	rebalanceCmd.Flags().StringVar(&runDate, "date", "", "rebalance date YYYY-MM-DD (default: today)")
	rebalanceCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "do not submit to the broker")
	rebalanceCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")

	recordCmd.Flags().StringVar(&runDate, "date", "", "record date YYYY-MM-DD (default: today)")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, func(c *strategyconfig.Config) {
		if runDryRun {
			c.Execution.DryRun = true
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	date, err := a.parseDate(runDate)
	if err != nil {
		return err
	}

	var (
		next   brain.State
		result *brain.RunResult
	)
	err = a.state.Update(ctx, func(prior brain.State) (brain.State, bool, error) {
		var err error
		next, result, err = a.orchestrator.Rebalance(ctx, date, prior)
		if err != nil {
			return prior, false, fmt.Errorf("rebalance %s: %w", date.Format("2006-01-02"), err)
		}
		return next, !result.Skipped, nil
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printHeader("Rebalance " + date.Format("2006-01-02"))
	printKV("Run ID", result.RunID)
	printKV("Status", result.Status)
	printKV("Config", result.ConfigHash[:12])
	if result.Skipped {
		printKV("Reason", result.SkipReason)
		return nil
	}
	printKV("Dry run", fmt.Sprintf("%t", !result.Submitted))
	printKV("Duration", result.Duration.String())
	printTarget(next.Target)
	printTrades(result.Trades, result.Turnover)

	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	date, err := a.parseDate(runDate)
	if err != nil {
		return err
	}

	var rec *audit.DailyRecord
	err = a.state.Update(ctx, func(state brain.State) (brain.State, bool, error) {
		next, r, err := a.orchestrator.Record(ctx, date, state)
		rec = r
		return next, err == nil, err
	})
	if err != nil {
		return err
	}

	printHeader("Record " + date.Format("2006-01-02"))
	printKV("Positions", fmt.Sprintf("%d (long %d / short %d)", rec.NumPositions, rec.NumLongs, rec.NumShorts))
	printKV("Gross", fmt.Sprintf("%.4f", rec.GrossExposure))
	printKV("Net", fmt.Sprintf("%+.4f", rec.NetExposure))

	return nil
}
