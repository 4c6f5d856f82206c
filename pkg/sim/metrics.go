package sim

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AgentWealth pairs an agent with its fiat-valued wealth.
type AgentWealth struct {
	Name   string          `json:"name"`
	Wealth decimal.Decimal `json:"wealth"`
}

// Wealths returns every agent's wealth at current rolling prices.
func (m *Model) Wealths() []AgentWealth {
	out := make([]AgentWealth, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, AgentWealth{Name: a.Name(), Wealth: a.Wealth()})
	}
	return out
}

// TotalWealth sums all agent wealth in fiat terms.
func (m *Model) TotalWealth() decimal.Decimal {
	total := decimal.Zero
	for _, a := range m.agents {
		total = total.Add(a.Wealth())
	}
	return total
}

// Gini measures wealth inequality across the population, 0 (equal) to 1.
func (m *Model) Gini() decimal.Decimal {
	n := len(m.agents)
	if n == 0 {
		return decimal.Zero
	}
	wealths := make([]decimal.Decimal, 0, n)
	total := decimal.Zero
	for _, a := range m.agents {
		w := a.Wealth()
		wealths = append(wealths, w)
		total = total.Add(w)
	}
	if total.Sign() <= 0 {
		return decimal.Zero
	}
	sort.Slice(wealths, func(i, j int) bool { return wealths[i].Cmp(wealths[j]) < 0 })

	// G = (2 * sum(i * w_i) / (n * sum(w))) - (n + 1) / n, ranks 1-based.
	weighted := decimal.Zero
	for i, w := range wealths {
		weighted = weighted.Add(decimal.NewFromInt(int64(i + 1)).Mul(w))
	}
	nn := decimal.NewFromInt(int64(n))
	two := decimal.NewFromInt(2)
	return two.Mul(weighted).Div(nn.Mul(total)).Sub(nn.Add(decimal.NewFromInt(1)).Div(nn))
}

// WealthSpread is the gap between the richest and poorest agents.
func (m *Model) WealthSpread() decimal.Decimal {
	if len(m.agents) == 0 {
		return decimal.Zero
	}
	min := m.agents[0].Wealth()
	max := min
	for _, a := range m.agents[1:] {
		w := a.Wealth()
		if w.Cmp(min) < 0 {
			min = w
		}
		if w.Cmp(max) > 0 {
			max = w
		}
	}
	return max.Sub(min)
}
