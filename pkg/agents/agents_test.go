package agents_test

import (
	"math/rand"
	"testing"

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

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	led     *ledger.Ledger
	markets *market.Manager
	mint    *mint.Mint
}

func newFixture() *fixture {
	prec := fixed.Default()
	led := ledger.New(prec)
	m := market.New(market.Config{
		Precision: prec,
		Fees:      fees.NewSchedule(prec, fees.DefaultRate),
		Stats:     stats.Config{Window: 15, Precision: prec},
	}, led, zap.NewNop())
	return &fixture{
		led:     led,
		markets: m,
		mint:    mint.New(prec, led, m, dec("0.25")),
	}
}

func (f *fixture) trader(name string, seed int64) *agents.Trader {
	id := f.led.CreateAccount(name, dec("0"), dec("0"), dec("0"))
	t := agents.NewTrader(name, id, f.markets, f.mint, rand.New(rand.NewSource(seed)))
	return t
}

func TestTraderWealthAtParity(t *testing.T) {
	f := newFixture()
	tr := f.trader("alice", 1)
	f.led.Credit(tr.ID(), ledger.Coin, dec("100"))
	f.led.Credit(tr.ID(), ledger.Stable, dec("50"))
	f.led.Credit(tr.ID(), ledger.Fiat, dec("25"))

	// Fresh markets price everything at 1.
	if got := tr.Wealth(); !got.Equal(dec("175")) {
		t.Fatalf("wealth = %s, want 175", got)
	}

	// Issued stable is debt.
	f.mint.Escrow(tr.ID(), dec("100"))
	f.mint.Issue(tr.ID(), dec("25"))
	if got := tr.Wealth(); !got.Equal(dec("175")) {
		t.Fatalf("wealth after issuance = %s, want unchanged 175", got)
	}
}

func TestCancelOrdersClearsTheBook(t *testing.T) {
	f := newFixture()
	tr := f.trader("alice", 1)
	f.led.Credit(tr.ID(), ledger.Fiat, dec("1000"))

	b := f.markets.CoinFiatMarket()
	tr.PlaceBid(b, dec("0.9"), dec("10"))
	tr.PlaceBid(b, dec("0.8"), dec("10"))
	if tr.OrderCount() != 2 {
		t.Fatalf("orders = %d, want 2", tr.OrderCount())
	}

	tr.CancelOrders()
	if tr.OrderCount() != 0 || b.BidCount() != 0 {
		t.Fatalf("orders left after cancel: %d mine, %d resting",
			tr.OrderCount(), b.BidCount())
	}
	if got := f.led.Account(tr.ID()).Reserved(ledger.Fiat); !got.IsZero() {
		t.Fatalf("reservation left after cancel: %s", got)
	}
}

func TestRandomizerRespectsOrderCap(t *testing.T) {
	f := newFixture()
	r := agents.NewRandomizer(f.trader("rand", 7))
	f.markets.RegisterIssuer(r.ID(), r)
	r.Setup(dec("1000"))

	for i := 0; i < 100; i++ {
		r.Step()
		f.markets.AdvanceTick()
		if r.OrderCount() > r.MaxOrders {
			t.Fatalf("order count %d exceeds cap %d", r.OrderCount(), r.MaxOrders)
		}
	}
}

func TestBankerEscrowsAndIssues(t *testing.T) {
	f := newFixture()
	b := agents.NewBanker(f.trader("banker", 3))
	f.markets.RegisterIssuer(b.ID(), b)
	b.Setup(dec("1000"))
	f.led.Credit(b.ID(), ledger.Coin, dec("400"))

	b.Step()

	acct := f.led.Account(b.ID())
	if !acct.Escrowed().Equal(dec("400")) {
		t.Fatalf("escrowed = %s, want 400", acct.Escrowed())
	}
	// 400 coin at parity and utilisation 0.25 backs 100 stable.
	if !acct.Issued().Equal(dec("100")) {
		t.Fatalf("issued = %s, want 100", acct.Issued())
	}
}

func TestArbitrageurSitsOutBalancedMarkets(t *testing.T) {
	f := newFixture()
	a := agents.NewArbitrageur(f.trader("arb", 5))
	f.markets.RegisterIssuer(a.ID(), a)
	a.Setup(dec("1000"))

	// All prices at parity: with fees no cycle is profitable.
	a.Step()
	if a.OrderCount() != 0 {
		t.Fatalf("arbitrageur traded a balanced market: %d orders", a.OrderCount())
	}
}
