package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/longshort/internal/strategyconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 검증/조회",
	Long: `전략 YAML을 검증하거나 해석된 설정을 출력합니다.

Example:
  go run ./cmd/quant config validate
  go run ./cmd/quant config show --strategy config/strategy/long_short_equity.yaml`,
}

var (
	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "전략 설정 검증",
		RunE:  runConfigValidate,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "해석된 전략 설정 출력 (JSON)",
		RunE:  runConfigShow,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, _, strategy, err := loadStrategy()
	if err != nil {
		return err
	}

	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return err
	}

	printHeader("Strategy " + strategy.Meta.StrategyID)
	printKV("Hash", hash)
	printKV("Factors", fmt.Sprintf("%d", len(strategy.Factors.Steps)))
	printKV("Positions", fmt.Sprintf("%d (%d per side)", strategy.Portfolio.TotalPositions, strategy.Portfolio.PerSide()))

	warnings := strategyconfig.Warn(strategy)
	for _, w := range warnings {
		fmt.Printf("  ⚠️  %s: %s\n", w.Code, w.Message)
	}

	fmt.Println("\n✅ Strategy config is valid")
	return nil
}

// configView is the resolved strategy plus what is derived from it
type configView struct {
	Hash          string                  `json:"hash"`
	RebalanceCron string                  `json:"rebalance_cron"`
	RecordCron    string                  `json:"record_cron"`
	MaxLong       float64                 `json:"max_long_position_size"`
	MaxShort      float64                 `json:"max_short_position_size"`
	Warnings      []strategyconfig.Warning `json:"warnings,omitempty"`
	Strategy      *strategyconfig.Config  `json:"strategy"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, _, strategy, err := loadStrategy()
	if err != nil {
		return err
	}

	view := configView{Strategy: strategy, Warnings: strategyconfig.Warn(strategy)}
	if view.Hash, err = strategyconfig.Hash(strategy); err != nil {
		return err
	}
	if view.RebalanceCron, err = strategy.Schedule.RebalanceCron(); err != nil {
		return err
	}
	if view.RecordCron, err = strategy.Schedule.RecordCron(); err != nil {
		return err
	}
	view.MaxLong, view.MaxShort = strategy.Portfolio.PositionBounds()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
