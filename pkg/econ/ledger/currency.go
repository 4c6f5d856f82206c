package ledger

// Currency identifies one of the three fungible assets in the system.
type Currency uint8

const (
	// Coin is the collateral token backing stable issuance.
	Coin Currency = iota
	// Stable is the stablecoin issued against escrowed coin.
	Stable
	// Fiat is the external reference currency.
	Fiat

	numCurrencies = 3
)

func (c Currency) String() string {
	switch c {
	case Coin:
		return "coin"
	case Stable:
		return "stable"
	case Fiat:
		return "fiat"
	default:
		return "unknown"
	}
}

// Currencies lists all assets in enum order.
func Currencies() []Currency {
	return []Currency{Coin, Stable, Fiat}
}
