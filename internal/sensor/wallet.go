package sensor

import (
	"log/slog"
	"strings"
)

// WalletTokens are the balances reported for a wallet, in display order.
var WalletTokens = []string{TokenHNT, TokenIOT, TokenSOL, TokenMobile}

// balanceKey maps a token to its key under "balance". SOL is reported as
// "solana".
func balanceKey(token string) string {
	if token == TokenSOL {
		return "solana"
	}
	return strings.ToLower(token)
}

// WalletSensors returns one balance sensor per wallet token.
func WalletSensors(src Source, address string, logger *slog.Logger) []*Sensor {
	addr4 := shortAddress(address)
	device := Device{
		ID:           "helium.wallet." + addr4,
		Name:         "Helium Wallet " + addr4,
		Manufacturer: manufacturer,
	}

	out := make([]*Sensor, 0, len(WalletTokens))
	for _, token := range WalletTokens {
		path := FieldPath{"balance", balanceKey(token)}
		out = append(out, newSensor(src, logger, Sensor{
			UniqueID:   "helium.wallet." + addr4 + "_" + strings.ToLower(token),
			Name:       token + " Balance",
			Device:     device,
			Icon:       "mdi:wallet",
			StateClass: StateClassTotal,
			Path:       path,
		}, fieldValue(path, 1, token)))
	}
	return out
}

func shortAddress(address string) string {
	if len(address) <= 4 {
		return address
	}
	return address[:4]
}
