// Package sim assembles the ledger, markets, mint and agent population into
// a deterministic tick-stepped model.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stablesim/stablesim/pkg/agents"
	"github.com/stablesim/stablesim/pkg/econ/fees"
	"github.com/stablesim/stablesim/pkg/econ/fixed"
	"github.com/stablesim/stablesim/pkg/econ/ledger"
	"github.com/stablesim/stablesim/pkg/econ/market"
	"github.com/stablesim/stablesim/pkg/econ/mint"
	"github.com/stablesim/stablesim/pkg/econ/stats"
)

// Config tunes one simulation run.
type Config struct {
	Seed int64

	Randomizers  int
	Arbitrageurs int
	MarketMakers int
	Bankers      int

	// InitialValue scales every agent's endowment.
	InitialValue decimal.Decimal

	UtilisationRatio decimal.Decimal
	TransferFeeRate  decimal.Decimal

	// ContinuousMatching settles on submission; otherwise matching is
	// batched once per tick after all agents have acted.
	ContinuousMatching bool

	// FeePeriod is the tick interval between fee distributions.
	FeePeriod int64

	// RollingWindow and VolumeWeighted configure the books' price series.
	RollingWindow  int64
	VolumeWeighted bool

	Precision fixed.Precision
}

// DefaultConfig mirrors the standard run parameters.
func DefaultConfig() Config {
	return Config{
		Seed:             42,
		Randomizers:      20,
		Arbitrageurs:     2,
		MarketMakers:     4,
		Bankers:          4,
		InitialValue:     decimal.NewFromInt(1000),
		UtilisationRatio: mint.DefaultUtilisationRatio,
		TransferFeeRate:  fees.DefaultRate,
		FeePeriod:        50,
		RollingWindow:    15,
		Precision:        fixed.Default(),
	}
}

// Model is one running simulation.
type Model struct {
	cfg Config
	log *zap.Logger
	rng *rand.Rand

	led     *ledger.Ledger
	markets *market.Manager
	mint    *mint.Mint

	agents []agents.Agent

	feesDistributed decimal.Decimal
}

// New builds a model and endows its agent population. Two models built from
// the same config produce identical runs.
func New(cfg Config, log *zap.Logger) *Model {
	led := ledger.New(cfg.Precision)
	markets := market.New(market.Config{
		Precision:    cfg.Precision,
		Fees:         fees.NewSchedule(cfg.Precision, cfg.TransferFeeRate),
		MatchOnOrder: cfg.ContinuousMatching,
		Stats: stats.Config{
			Window:         cfg.RollingWindow,
			VolumeWeighted: cfg.VolumeWeighted,
			Precision:      cfg.Precision,
		},
	}, led, log)
	mnt := mint.New(cfg.Precision, led, markets, cfg.UtilisationRatio)

	m := &Model{
		cfg:     cfg,
		log:     log,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		led:     led,
		markets: markets,
		mint:    mnt,
	}
	m.populate()
	return m
}

func (m *Model) populate() {
	build := func(kind string, n int, make func(*agents.Trader) agents.Agent) {
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("%s-%d", kind, i)
			id := m.led.CreateAccount(name, decimal.Zero, decimal.Zero, decimal.Zero)
			// Each agent draws from its own stream so the population's
			// behaviour does not depend on step interleaving.
			rng := rand.New(rand.NewSource(m.cfg.Seed + int64(id) + 1))
			a := make(agents.NewTrader(name, id, m.markets, m.mint, rng))
			m.markets.RegisterIssuer(id, a)
			a.Setup(m.cfg.InitialValue)
			m.agents = append(m.agents, a)
		}
	}
	build("randomizer", m.cfg.Randomizers, func(t *agents.Trader) agents.Agent { return agents.NewRandomizer(t) })
	build("arbitrageur", m.cfg.Arbitrageurs, func(t *agents.Trader) agents.Agent { return agents.NewArbitrageur(t) })
	build("marketmaker", m.cfg.MarketMakers, func(t *agents.Trader) agents.Agent { return agents.NewMarketMaker(t) })
	build("banker", m.cfg.Bankers, func(t *agents.Trader) agents.Agent { return agents.NewBanker(t) })

	m.log.Info("population endowed",
		zap.Int("agents", len(m.agents)),
		zap.String("coinSupply", m.led.CoinSupply().String()))
}

// Ledger returns the model's balance sheet.
func (m *Model) Ledger() *ledger.Ledger { return m.led }

// Markets returns the model's market manager.
func (m *Model) Markets() *market.Manager { return m.markets }

// Mint returns the model's issuance controller.
func (m *Model) Mint() *mint.Mint { return m.mint }

// Agents returns the population in creation order.
func (m *Model) Agents() []agents.Agent { return m.agents }

// Tick returns the current model tick.
func (m *Model) Tick() int64 { return m.markets.Tick() }

// FeesDistributed returns the cumulative fees paid out of the pools.
func (m *Model) FeesDistributed() decimal.Decimal { return m.feesDistributed }

// Step advances the model one tick: agents act in a freshly shuffled order,
// outstanding orders are matched, the tick's statistics close, fees are
// distributed on period boundaries, and time advances.
func (m *Model) Step() {
	order := m.rng.Perm(len(m.agents))
	for _, i := range order {
		m.agents[i].Step()
	}

	if !m.cfg.ContinuousMatching {
		m.markets.MatchAll()
	}

	m.markets.StepHistory()

	if m.cfg.FeePeriod > 0 && m.markets.Tick()%m.cfg.FeePeriod == 0 {
		m.distributeFees()
	}

	m.markets.AdvanceTick()
}

// Run steps the model the given number of ticks.
func (m *Model) Run(ticks int64) {
	for i := int64(0); i < ticks; i++ {
		m.Step()
	}
	m.log.Info("run complete",
		zap.Int64("ticks", m.Tick()),
		zap.String("coinFiat", m.markets.CoinPriceInFiat().String()),
		zap.String("stableFiat", m.markets.StablePriceInFiat().String()),
		zap.String("feesDistributed", m.feesDistributed.String()))
}

// distributeFees pays each currency's accrued fee pool out to coin holders,
// weighting each holding by how fully the holder uses its issuance rights.
// When nobody has issued, plain coin-proportional weights apply so the pools
// still drain. Rounding dust stays in the pool.
func (m *Model) distributeFees() {
	prec := m.cfg.Precision
	weights := make([]decimal.Decimal, len(m.agents))
	totalWeight := decimal.Zero
	for i, a := range m.agents {
		weights[i] = m.led.Balance(a.ID(), ledger.Coin).Mul(m.collateralisation(a.ID()))
		totalWeight = totalWeight.Add(weights[i])
	}
	if totalWeight.Sign() <= 0 {
		for i, a := range m.agents {
			weights[i] = m.led.Balance(a.ID(), ledger.Coin)
			totalWeight = totalWeight.Add(weights[i])
		}
	}
	if totalWeight.Sign() <= 0 {
		return
	}

	for _, c := range ledger.Currencies() {
		pool := m.led.FeePool(c)
		if pool.Sign() <= 0 {
			continue
		}
		remaining := pool
		for i, a := range m.agents {
			// Rounded shares may sum past the pool; never overdraw it.
			share := decimal.Min(prec.Round(weights[i].Div(totalWeight).Mul(pool)), remaining)
			if share.Sign() <= 0 {
				continue
			}
			remaining = remaining.Sub(share)
			m.led.PayFromPool(a.ID(), c, share)
			if c == ledger.Stable {
				m.feesDistributed = m.feesDistributed.Add(share)
			}
		}
	}
	m.log.Debug("fees distributed", zap.Int64("tick", m.markets.Tick()))
}

// collateralisation is the fraction of the account's issuance rights in use,
// clamped to [0, 1]. Zero for accounts with no escrow.
func (m *Model) collateralisation(id ledger.AccountID) decimal.Decimal {
	max := m.mint.MaxIssuanceRights(id)
	if max.Sign() <= 0 {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	ratio := m.led.Account(id).Issued().Div(max)
	return decimal.Min(ratio, one)
}
