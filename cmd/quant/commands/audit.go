package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "일별 기록 조회",
	Long: `record 작업이 남긴 일별 포지션 수와 익스포저를 조회합니다.

Example:
  go run ./cmd/quant audit records --from 2024-01-01 --to 2024-01-31
  go run ./cmd/quant audit runs --limit 20`,
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "최근 리밸런싱 실행 로그 (DB 필요)",
	RunE:  runAuditRuns,
}

var auditRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "기간별 일별 기록",
	RunE:  runAuditRecords,
}

var (
	auditFrom string
	auditTo   string
	runsLimit int
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRecordsCmd)
	auditCmd.AddCommand(auditRunsCmd)

	auditRecordsCmd.Flags().StringVar(&auditFrom, "from", "", "start date YYYY-MM-DD (default: 30 days before --to)")
	auditRecordsCmd.Flags().StringVar(&auditTo, "to", "", "end date YYYY-MM-DD (default: today)")
	auditRunsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs")
}

func runAuditRecords(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	to, err := a.parseDate(auditTo)
	if err != nil {
		return err
	}
	from := to.AddDate(0, 0, -30)
	if auditFrom != "" {
		if from, err = a.parseDate(auditFrom); err != nil {
			return err
		}
	}

	records, err := a.recorder.GetRecords(ctx, from, to)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Daily records %s ~ %s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	if len(records) == 0 {
		fmt.Println("  (no records)")
		return nil
	}

	fmt.Printf("  %-10s %5s %5s %5s %8s %8s\n", "DATE", "POS", "LONG", "SHORT", "GROSS", "NET")
	for _, r := range records {
		fmt.Printf("  %-10s %5d %5d %5d %8.4f %+8.4f\n",
			r.Date.Format("2006-01-02"), r.NumPositions, r.NumLongs, r.NumShorts, r.GrossExposure, r.NetExposure)
	}

	return nil
}

func runAuditRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if a.portfolios == nil {
		return fmt.Errorf("run logs are stored in PostgreSQL; set DATABASE_URL and DATA_SOURCE or STATE_BACKEND=postgres")
	}

	logs, err := a.portfolios.GetRebalanceLogs(ctx, runsLimit)
	if err != nil {
		return err
	}

	printHeader("Rebalance runs")
	if len(logs) == 0 {
		fmt.Println("  (no runs)")
		return nil
	}

	fmt.Printf("  %-10s %-10s %-36s %4s %8s %8s\n", "DATE", "STATUS", "RUN ID", "POS", "GROSS", "NET")
	for _, l := range logs {
		fmt.Printf("  %-10s %-10s %-36s %4d %8.4f %+8.4f\n",
			l.Date.Format("2006-01-02"), l.Status, l.RunID, l.Positions, l.Gross, l.Net)
		if l.Error != "" {
			fmt.Printf("  %10s ↳ %s\n", "", l.Error)
		}
	}

	return nil
}
