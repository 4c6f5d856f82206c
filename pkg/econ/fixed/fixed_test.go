package fixed

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundHalfUp(t *testing.T) {
	p := Default()
	cases := []struct {
		in   string
		want string
	}{
		{"1.123456789", "1.12345679"},     // 9 rounds up
		{"1.123456785", "1.12345679"},     // tie rounds away from zero
		{"1.123456784", "1.12345678"},
		{"-1.123456785", "-1.12345679"},   // negative ties away from zero
		{"0.000000005", "0.00000001"},
		{"2", "2"},
		{"0", "0"},
	}
	for _, c := range cases {
		got := p.Round(dec(c.in))
		if !got.Equal(dec(c.want)) {
			t.Errorf("Round(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestRoundIdempotent(t *testing.T) {
	p := Default()
	vals := []string{"1.12345679", "0.00000001", "-5.5", "100"}
	for _, v := range vals {
		once := p.Round(dec(v))
		twice := p.Round(once)
		if !once.Equal(twice) {
			t.Errorf("Round not idempotent on %s: %s != %s", v, once, twice)
		}
	}
}

func TestMulDivRound(t *testing.T) {
	p := Default()
	got := p.MulRound(dec("1.00000001"), dec("1.00000001"))
	if !got.Equal(dec("1.00000002")) {
		t.Errorf("MulRound = %s, want 1.00000002", got)
	}
	got = p.DivRound(dec("1"), dec("3"))
	if !got.Equal(dec("0.33333333")) {
		t.Errorf("DivRound = %s, want 0.33333333", got)
	}
}

func TestKeyOrdersLikeValues(t *testing.T) {
	p := Default()
	a, b := dec("1.1"), dec("1.10000001")
	if p.Key(a) >= p.Key(b) {
		t.Errorf("Key(%s)=%d not below Key(%s)=%d", a, p.Key(a), b, p.Key(b))
	}
	if p.Key(dec("1.10000000")) != p.Key(dec("1.1")) {
		t.Errorf("equal values mapped to different keys")
	}
}
