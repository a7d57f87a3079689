package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/longshort/internal/api"
	"github.com/wonny/longshort/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                        - Health check
  GET  /api/portfolio/target          - 보유 목표 포트폴리오
  GET  /api/portfolio/records         - 일별 기록 (?from=&to=)
  POST /api/rebalance                 - 리밸런스 즉시 실행 (?date=)
  GET  /api/selection                 - 날짜별 점수와 롱/숏 후보 (?date=, DB 필요)
  GET  /api/scheduler/jobs            - 작업 통계 (--with-scheduler)
  POST /api/scheduler/jobs/{name}/run - 작업 즉시 실행 (--with-scheduler)

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default is $PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "같은 프로세스에서 스케줄러도 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Long-Short API Server ===")

	a, err := newApp(context.Background(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	var schedulerHandler *handlers.SchedulerHandler
	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		schedulerHandler = handlers.NewSchedulerHandler(sched, log)
	}

	portfolioHandler := handlers.NewPortfolioHandler(a.orchestrator, a.state, a.recorder, a.location, log)
	var selectionHandler *handlers.SelectionHandler
	if a.selections != nil {
		selectionHandler = handlers.NewSelectionHandler(a.selections, a.location, log)
	}

	router := api.NewRouter(portfolioHandler, selectionHandler, schedulerHandler, log)
	server := api.New(a.cfg, log, router)

	// Ctrl+C / SIGTERM 시 진행 중인 요청을 마무리하고 종료
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	select {
	case <-server.Ready():
	case err := <-done:
		return err
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	if err := <-done; err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
