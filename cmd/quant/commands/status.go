package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/longshort/internal/portfolio"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "보유 상태 조회",
	Long: `저장된 전략 상태(목표 포트폴리오, 마지막 리밸런스/기록 시각)를 표시합니다.
보유 상태가 비어 있고 DB가 연결되어 있으면 마지막으로 저장된 목표를 보여줍니다.

Example:
  go run ./cmd/quant status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.state.Load(ctx)
	if err != nil {
		return err
	}

	printHeader("Strategy " + a.strategy.Meta.StrategyID)
	printKV("Backend", a.cfg.StateBackend)
	if a.redis.Enabled() {
		health := "ok"
		if err := a.redis.Ping(ctx); err != nil {
			health = err.Error()
		}
		printKV("Redis", a.redis.Addr()+" ("+health+")")
	}
	printKV("Run ID", state.RunID)
	if !state.LastRebalance.IsZero() {
		printKV("Rebalance", state.LastRebalance.Format("2006-01-02"))
	}
	if !state.LastRecord.IsZero() {
		printKV("Record", state.LastRecord.Format("2006-01-02"))
	}
	if state.Target != nil || a.portfolios == nil {
		printTarget(state.Target)
		return nil
	}

	// 보유 상태가 없으면 DB에 마지막으로 저장된 목표를 참고용으로 표시
	latest, err := a.portfolios.GetLatestTargetPortfolio(ctx)
	if errors.Is(err, portfolio.ErrNotFound) {
		printTarget(nil)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("\n  (no held target; latest stored target shown, not held)")
	printTarget(latest)

	return nil
}
