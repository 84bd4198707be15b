// Command backtester runs an event-driven backtest or paper-trading
// session and, optionally, a JSON dashboard over its state.
//
// Grounded on the teacher's cmd/trader/main.go: flag-parsed CLI, explicit
// component wiring (no reflection-based DI), context cancellation on
// SIGINT/SIGTERM, and a log.Printf-driven startup/shutdown narrative.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/apiserver"
	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/config"
	"github.com/ngmysamuel/gobacktester/internal/driver"
	"github.com/ngmysamuel/gobacktester/internal/events"
	"github.com/ngmysamuel/gobacktester/internal/execution"
	"github.com/ngmysamuel/gobacktester/internal/logging"
	"github.com/ngmysamuel/gobacktester/internal/portfolio"
	"github.com/ngmysamuel/gobacktester/internal/registry"
	"github.com/ngmysamuel/gobacktester/internal/risk"

	_ "github.com/ngmysamuel/gobacktester/internal/data"
	_ "github.com/ngmysamuel/gobacktester/internal/sizer"
	_ "github.com/ngmysamuel/gobacktester/internal/slippage"
	_ "github.com/ngmysamuel/gobacktester/internal/strategy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:], false, "")
	case "dashboard":
		dashboardCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: backtester <run|dashboard> [flags]")
}

type runFlags struct {
	dataDir        string
	dataSource     string
	positionCalc   string
	slippage       string
	strategy       string
	riskManager    string
	exceptionContd int
	configPath     string
	outputPath     string
	startDate      string
	endDate        string
	initialCapital float64
	tickerList     string
	benchmark      string
	apiAddr        string
}

func parseRunFlags(args string, fs *flag.FlagSet) *runFlags {
	rf := &runFlags{}
	fs.StringVar(&rf.dataDir, "data_dir", ".", "directory containing {TICKER}_{interval}.csv files")
	fs.StringVar(&rf.dataSource, "data_source", "csv", "data source: csv|yf|live")
	fs.StringVar(&rf.positionCalc, "position_calc", "", "position_sizer entry name (defaults to the configured one)")
	fs.StringVar(&rf.slippage, "slippage", "", "slippage entry name (defaults to the configured one)")
	fs.StringVar(&rf.strategy, "strategy", "", "strategies entry name to run (defaults to all configured)")
	fs.StringVar(&rf.riskManager, "risk_manager", "", "risk_manager entry name (defaults to the configured one)")
	fs.IntVar(&rf.exceptionContd, "exception_contd", -1, "override exception_contd (0 or 1); -1 leaves config unchanged")
	fs.StringVar(&rf.configPath, "config_path", "config.yaml", "path to config file")
	fs.StringVar(&rf.outputPath, "output_path", "equity_curve.csv", "path to write the resampled equity curve")
	fs.StringVar(&rf.startDate, "start_date", "", "override backtester_settings.start_date")
	fs.StringVar(&rf.endDate, "end_date", "", "override backtester_settings.end_date")
	fs.Float64Var(&rf.initialCapital, "initial_capital", 0, "override backtester_settings.initial_capital")
	fs.StringVar(&rf.tickerList, "ticker_list", "", "comma-separated ticker override")
	fs.StringVar(&rf.benchmark, "benchmark", "", "override backtester_settings.benchmark")
	fs.StringVar(&rf.apiAddr, "api_addr", ":8080", "dashboard listen address (dashboard command only)")
	return rf
}

func runCmd(args []string, withDashboard bool, _ string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	rf := parseRunFlags("run", fs)
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, log2, err := loadConfig(rf)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	d, err := build(cfg, rf, log2)
	if err != nil {
		log.Fatalf("build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var srv *apiserver.Server
	if withDashboard {
		srv = apiserver.NewServer(rf.apiAddr, d)
		if err := srv.Start(ctx); err != nil {
			log.Fatalf("apiserver: %v", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("backtester starting (data_source=%s exception_contd=%t)", rf.dataSource, cfg.BacktesterSettings.ExceptionContd)
	curve, err := d.Run(ctx)
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Printf("run complete: %d equity points", len(curve))

	if err := writeEquityCurve(rf.outputPath, curve); err != nil {
		log.Fatalf("writing %s: %v", rf.outputPath, err)
	}
	log.Printf("wrote %s", rf.outputPath)
}

func dashboardCmd(args []string) {
	runCmd(args, true, "")
}

func loadConfig(rf *runFlags) (config.Config, logging.Logger, error) {
	cfg, err := config.LoadFile(rf.configPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	if rf.exceptionContd == 0 || rf.exceptionContd == 1 {
		cfg.BacktesterSettings.ExceptionContd = rf.exceptionContd == 1
	}
	if rf.initialCapital > 0 {
		cfg.BacktesterSettings.InitialCapital = rf.initialCapital
	}
	if rf.startDate != "" {
		cfg.BacktesterSettings.StartDate = rf.startDate
	}
	if rf.endDate != "" {
		cfg.BacktesterSettings.EndDate = rf.endDate
	}
	if rf.benchmark != "" {
		cfg.BacktesterSettings.Benchmark = rf.benchmark
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	logger, err := logging.New(logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func build(cfg config.Config, rf *runFlags, logger logging.Logger) (*driver.Driver, error) {
	settings := cfg.BacktesterSettings
	barsMgr := bars.NewManager(settings.BaseInterval)
	ch := events.NewChannel(1024)

	ds, err := buildDataSource(cfg, rf, settings)
	if err != nil {
		return nil, fmt.Errorf("data source: %w", err)
	}

	sizerName, sizerComp, err := selectComponent(cfg.PositionSizer, rf.positionCalc, "position_sizer")
	if err != nil {
		return nil, err
	}
	sz, err := registry.Sizers.Build(sizerComp.ClassSpec, sizerComp.AdditionalParameters)
	if err != nil {
		return nil, fmt.Errorf("position_sizer %s: %w", sizerName, err)
	}

	slipName, slipComp, err := selectComponent(cfg.Slippage, rf.slippage, "slippage")
	if err != nil {
		return nil, err
	}
	slip, err := registry.SlippageModels.Build(slipComp.ClassSpec, slipComp.AdditionalParameters)
	if err != nil {
		return nil, fmt.Errorf("slippage %s: %w", slipName, err)
	}

	riskName, riskComp, err := selectComponent(cfg.RiskManager, rf.riskManager, "risk_manager")
	if err != nil {
		return nil, err
	}
	riskMgr, err := risk.Build(riskComp.ClassSpec, riskComp.AdditionalParameters)
	if err != nil {
		return nil, fmt.Errorf("risk_manager %s: %w", riskName, err)
	}

	symbols, rounding := strategySymbols(cfg, rf.strategy, rf.tickerList)
	sizerInterval := strategyInterval(cfg, rf.strategy, settings.BaseInterval)
	start, _ := time.Parse("2006-01-02", settings.StartDate)

	port := portfolio.New(portfolio.Config{
		CashBuffer:          settings.CashBuffer,
		InitialCapital:      settings.InitialCapital,
		InitialPositionSize: settings.InitialPositionSize,
		SymbolList:          symbols,
		Rounding:            rounding,
		Interval:            settings.BaseInterval,
		MetricsInterval:     settings.MetricsInterval,
		Allocation:          1.0 / float64(max(len(symbols), 1)),
		BorrowCost:          settings.BorrowCost,
		MaintenanceMargin:   settings.MaintenanceMargin,
		RiskPerTrade:        settings.RiskPerTrade,
		StrategyName:        rf.strategy,
		AnnualizationFactor: settings.AnnualizationFactor,
	}, sz, riskMgr, barsMgr, ch, start)

	for _, ticker := range symbols {
		if err := barsMgr.Subscribe(settings.BaseInterval, ticker, port); err != nil {
			return nil, fmt.Errorf("subscribing portfolio to %s: %w", ticker, err)
		}
		if sub, ok := sz.(bars.Subscriber); ok {
			if err := barsMgr.Subscribe(sizerInterval, ticker, sub); err != nil {
				return nil, fmt.Errorf("subscribing sizer to %s: %w", ticker, err)
			}
		}
		if sub, ok := slip.(bars.Subscriber); ok {
			if err := barsMgr.Subscribe(settings.BaseInterval, ticker, sub); err != nil {
				return nil, fmt.Errorf("subscribing slippage to %s: %w", ticker, err)
			}
		}
	}

	for name, strat := range cfg.Strategies {
		if rf.strategy != "" && name != rf.strategy {
			continue
		}
		s, err := registry.BuildStrategy(strat.ClassSpec, barsMgr, strat.AdditionalParameters)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}
		adapter := &driver.Adapter{Strategy: s, Out: ch}
		for _, ticker := range strat.SymbolList {
			if err := barsMgr.Subscribe(strat.Interval, ticker, adapter); err != nil {
				return nil, fmt.Errorf("subscribing strategy %s to %s: %w", name, ticker, err)
			}
		}
	}

	execHandler := execution.New(slip, ch)
	d := driver.New(ds, barsMgr, ch, execHandler, port, settings.Benchmark, logger)
	d.ExceptionContd = settings.ExceptionContd
	return d, nil
}

func buildDataSource(cfg config.Config, rf *runFlags, settings config.BacktesterSettings) (driver.DataSource, error) {
	if rf.dataSource == "live" {
		return nil, fmt.Errorf("live data source requires a dialed websocket connection; wire data.NewLiveHandler directly, not via the registry")
	}

	name, comp, err := selectComponent(cfg.DataHandler, rf.dataSource, "data_handler")
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{}
	for k, v := range comp.AdditionalParameters {
		params[k] = v
	}
	if _, ok := params["data_dir"]; !ok {
		params["data_dir"] = rf.dataDir
	}
	if _, ok := params["symbol_list"]; !ok {
		params["symbol_list"] = toInterfaceSlice(strings.Split(rf.tickerList, ","))
	}
	if _, ok := params["start_date"]; !ok {
		params["start_date"] = settings.StartDate
	}
	if _, ok := params["end_date"]; !ok {
		params["end_date"] = settings.EndDate
	}
	if _, ok := params["exchange_closing_time"]; !ok {
		params["exchange_closing_time"] = settings.ExchangeClosingTime
	}
	if _, ok := params["base_interval"]; !ok {
		params["base_interval"] = int64(settings.BaseInterval)
	}

	ds, err := registry.DataHandlers.Build(comp.ClassSpec, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return ds.(driver.DataSource), nil
}

func selectComponent(family map[string]config.Component, selected, label string) (string, config.Component, error) {
	if selected != "" {
		comp, ok := family[selected]
		if !ok {
			return "", config.Component{}, fmt.Errorf("%s: unknown entry %q", label, selected)
		}
		return selected, comp, nil
	}
	for name, comp := range family {
		return name, comp, nil
	}
	return "", config.Component{}, fmt.Errorf("%s: no entry configured", label)
}

// strategySymbols returns the union of symbols (and their rounding) across
// every strategy that build()'s adapter-wiring loop will actually run: all
// configured strategies when strategyName is empty, or just the named one
// otherwise. The portfolio's SymbolList must match that set exactly, or it
// silently sizes and marks-to-market only a subset of what's being traded.
func strategySymbols(cfg config.Config, strategyName, tickerOverride string) ([]string, map[string]int) {
	if tickerOverride != "" {
		symbols := strings.Split(tickerOverride, ",")
		rounding := make(map[string]int, len(symbols))
		for _, s := range symbols {
			rounding[s] = 0
		}
		return symbols, rounding
	}
	var symbols []string
	rounding := make(map[string]int)
	for name, strat := range cfg.Strategies {
		if strategyName != "" && name != strategyName {
			continue
		}
		for _, s := range strat.SymbolList {
			if _, seen := rounding[s]; !seen {
				symbols = append(symbols, s)
			}
			rounding[s] = strat.RoundingList[s]
		}
	}
	return symbols, rounding
}

// strategyInterval resolves the subscribed strategy's bar interval, the
// timeframe the ATR sizer's volatility estimate must track per §4.3 — not
// the base interval the data handler ingests at. Falls back to def when no
// strategy is configured. With strategyName set this is unambiguous; left
// unset (every configured strategy active), it deterministically picks the
// finest (smallest) configured interval across strategies rather than an
// arbitrary single one — map iteration order isn't stable across runs, and
// an ATR window that is too fine only costs cycles, while one that is too
// coarse misses volatility a faster strategy trades on.
func strategyInterval(cfg config.Config, strategyName string, def time.Duration) time.Duration {
	best := time.Duration(0)
	found := false
	for name, strat := range cfg.Strategies {
		if strategyName != "" && name != strategyName {
			continue
		}
		interval := strat.Interval
		if interval <= 0 {
			interval = def
		}
		if !found || interval < best {
			best = interval
			found = true
		}
	}
	if !found {
		return def
	}
	return best
}

func writeEquityCurve(path string, curve []portfolio.EquityPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "cash", "total", "commissions", "borrow_costs", "order", "slippage", "returns", "equity_curve"}); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(p.Cash, 'f', -1, 64),
			strconv.FormatFloat(p.Total, 'f', -1, 64),
			p.Commissions,
			p.BorrowCosts,
			p.Order,
			p.Slippage,
			strconv.FormatFloat(p.Return, 'f', -1, 64),
			strconv.FormatFloat(p.EquityCurve, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
