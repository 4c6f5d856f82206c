package sim

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stablesim/stablesim/pkg/econ/ledger"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Randomizers = 10
	cfg.Arbitrageurs = 2
	cfg.MarketMakers = 2
	cfg.Bankers = 2
	return cfg
}

func totalFiat(m *Model) decimal.Decimal {
	total := m.Ledger().FeePool(ledger.Fiat)
	for _, a := range m.Ledger().Accounts() {
		total = total.Add(a.Balance(ledger.Fiat))
	}
	return total
}

func TestRunsAreDeterministic(t *testing.T) {
	a := New(testConfig(), zap.NewNop())
	b := New(testConfig(), zap.NewNop())

	a.Run(60)
	b.Run(60)

	for i, ba := range a.Markets().Books() {
		bb := b.Markets().Books()[i]
		if !ba.Price().Equal(bb.Price()) {
			t.Fatalf("%s diverged: %s vs %s", ba.Name(), ba.Price(), bb.Price())
		}
		if len(ba.History()) != len(bb.History()) {
			t.Fatalf("%s trade counts diverged: %d vs %d",
				ba.Name(), len(ba.History()), len(bb.History()))
		}
	}
	if !a.TotalWealth().Equal(b.TotalWealth()) {
		t.Fatalf("wealth diverged: %s vs %s", a.TotalWealth(), b.TotalWealth())
	}
}

func TestSeedChangesTheRun(t *testing.T) {
	cfg := testConfig()
	a := New(cfg, zap.NewNop())
	cfg.Seed++
	b := New(cfg, zap.NewNop())

	a.Run(60)
	b.Run(60)

	same := true
	for i, ba := range a.Markets().Books() {
		bb := b.Markets().Books()[i]
		if len(ba.History()) != len(bb.History()) || !ba.Price().Equal(bb.Price()) {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds produced identical runs")
	}
}

func TestInvariantsHoldOverARun(t *testing.T) {
	m := New(testConfig(), zap.NewNop())
	fiatBefore := totalFiat(m)

	for i := 0; i < 120; i++ {
		m.Step()

		for _, a := range m.Ledger().Accounts() {
			if err := a.Validate(); err != nil {
				t.Fatalf("tick %d: %v", m.Tick(), err)
			}
		}
		for _, b := range m.Markets().Books() {
			if err := b.CheckConsistency(); err != nil {
				t.Fatalf("tick %d: %v", m.Tick(), err)
			}
		}
	}

	// Fiat is neither minted nor burned, only moved and pooled.
	if got := totalFiat(m); !got.Equal(fiatBefore) {
		t.Fatalf("fiat not conserved: %s -> %s", fiatBefore, got)
	}
}

func TestOneCandlePerTick(t *testing.T) {
	m := New(testConfig(), zap.NewNop())
	m.Run(25)

	for _, b := range m.Markets().Books() {
		if got := len(b.Series().Candles()); got != 26 {
			t.Fatalf("%s candles = %d, want 26 (open tick plus 25 steps)", b.Name(), got)
		}
		if got := len(b.Series().Volumes()); got != 26 {
			t.Fatalf("%s volumes = %d, want 26", b.Name(), got)
		}
	}
}

func TestSuppliesMatchBalances(t *testing.T) {
	m := New(testConfig(), zap.NewNop())
	m.Run(80)

	led := m.Ledger()
	coin := led.FeePool(ledger.Coin)
	stable := led.FeePool(ledger.Stable)
	for _, a := range led.Accounts() {
		coin = coin.Add(a.Balance(ledger.Coin))
		stable = stable.Add(a.Balance(ledger.Stable))
	}
	if !coin.Equal(led.CoinSupply()) {
		t.Fatalf("coin supply %s, balances plus pool %s", led.CoinSupply(), coin)
	}
	if !stable.Equal(led.StableSupply()) {
		t.Fatalf("stable supply %s, balances plus pool %s", led.StableSupply(), stable)
	}
}
