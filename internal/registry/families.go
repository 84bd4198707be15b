package registry

import (
	"context"
	"time"

	"github.com/ngmysamuel/gobacktester/internal/bars"
	"github.com/ngmysamuel/gobacktester/internal/events"
)

// Sizer mirrors internal/sizer's position-sizing contract structurally, so
// this package can register sizer implementations without importing the
// sizer package (which would import registry back, to call Register in its
// own init()).
type Sizer interface {
	GetPositionSize(riskPerTrade, totalEquity float64, rounding int, ticker string) (float64, bool)
}

// SlippageModel mirrors internal/slippage.Model structurally.
type SlippageModel interface {
	CalculateSlippage(ticker string, timestamp time.Time, quantity float64, direction events.Direction) float64
}

// DataSource mirrors internal/driver.DataSource structurally.
type DataSource interface {
	ContinueBacktest() bool
	UpdateBars(ctx context.Context) (events.Market, map[string]bars.Bar, error)
}

// Sizers, SlippageModels and DataHandlers are resolved purely from their
// additional_parameters map; they need no runtime collaborators at
// construction time.
var (
	Sizers         = New[Sizer]()
	SlippageModels = New[SlippageModel]()
	DataHandlers   = New[DataSource]()
)

// NewUnknownClassSpec lets a package outside registry (internal/risk, which
// resolves its own classSpec directly rather than through this registry, to
// avoid risk importing registry while registry imports risk) report the
// same error shape BuildStrategy uses. The generic Registry[T].Build
// families return a plain error instead.
func NewUnknownClassSpec(family, classSpec string, known []string) error {
	return unknownClassSpec(family, classSpec, known)
}

// StrategyFactory builds a strategy from its additional_parameters plus the
// bar manager, which MACrossover pulls full history from and BuyAndHold
// does not use; the manager is not expressible as a plain config value.
type StrategyFactory func(mgr *bars.Manager, params map[string]interface{}) (Strategy, error)

// Strategy mirrors internal/strategy.Strategy structurally.
type Strategy interface {
	OnInterval(histories map[bars.Key]bars.History) []events.Signal
}

var strategyFactories = map[string]StrategyFactory{}

// RegisterStrategy binds classSpec to factory.
func RegisterStrategy(classSpec string, factory StrategyFactory) {
	strategyFactories[classSpec] = factory
}

// BuildStrategy resolves classSpec and invokes its factory.
func BuildStrategy(classSpec string, mgr *bars.Manager, params map[string]interface{}) (Strategy, error) {
	factory, ok := strategyFactories[classSpec]
	if !ok {
		return nil, unknownClassSpec("strategies", classSpec, strategyNames())
	}
	return factory(mgr, params)
}

func strategyNames() []string {
	names := make([]string, 0, len(strategyFactories))
	for name := range strategyFactories {
		names = append(names, name)
	}
	return names
}

func unknownClassSpec(family, classSpec string, known []string) error {
	return &UnknownClassSpecError{Family: family, ClassSpec: classSpec, Known: known}
}

// UnknownClassSpecError reports a class_spec with no registered factory in
// the given family.
type UnknownClassSpecError struct {
	Family    string
	ClassSpec string
	Known     []string
}

func (e *UnknownClassSpecError) Error() string {
	return "registry: no " + e.Family + " factory registered for class_spec " + e.ClassSpec
}
