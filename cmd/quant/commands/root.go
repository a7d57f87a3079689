package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyPath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Long-short equity factor ranking and rebalancing engine",
	Long: `Long-Short Equity CLI

팩터 결합 → 롱/숏 후보 선정 → LP 포트폴리오 구성 → 주간 리밸런스.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant config validate
  go run ./cmd/quant rebalance --date 2024-01-08
  go run ./cmd/quant record
  go run ./cmd/quant scheduler start
  go run ./cmd/quant api --with-scheduler`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "strategy YAML (default is $STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
