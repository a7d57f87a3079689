package commands

import (
	"fmt"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/execution"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// printHeader prints a formatted section header
func printHeader(title string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
}

// printKV prints one aligned key/value line
func printKV(key, value string) {
	fmt.Printf("  %-10s: %s\n", key, value)
}

// printTarget prints the positions of a target, longs first
func printTarget(target *contracts.TargetPortfolio) {
	fmt.Println("───────────────────────────────────────────────────────────")
	if target == nil || target.Count() == 0 {
		fmt.Println("  (no positions)")
		return
	}

	fmt.Printf("  %-10s %6s %10s %10s\n", "SYMBOL", "SIDE", "WEIGHT", "SCORE")
	for _, p := range target.Positions {
		fmt.Printf("  %-10s %6s %+10.4f %10.4f\n", p.Symbol, p.Side(), p.Weight, p.Score)
	}
	fmt.Printf("  gross %.4f  net %+.4f  objective %.4f\n",
		target.GrossExposure(), target.NetExposure(), target.Objective)
}

// printTrades prints the trade list of a rebalance
func printTrades(trades []execution.Trade, turnover float64) {
	fmt.Println("───────────────────────────────────────────────────────────")
	if len(trades) == 0 {
		fmt.Println("  (no trades)")
		return
	}

	for _, t := range trades {
		fmt.Printf("  %-8s %-10s %+8.4f → %+8.4f\n", t.Action, t.Symbol, t.From, t.To)
	}
	fmt.Printf("  turnover %.4f\n", turnover)
}
