package sensor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

// CurrencyUSD is the fallback quote currency.
const CurrencyUSD = "USD"

// TokenIDNames maps price oracle ids to display names.
var TokenIDNames = map[string]string{
	"helium":         "HNT",
	"helium-iot":     "IOT",
	"helium-mobile":  "MOBILE",
	"wrapped-solana": "SOLANA",
}

// ResolvePrice returns the price of tokenID in currency, falling back to USD
// when the currency is absent or null in the payload.
func ResolvePrice(payload json.RawMessage, tokenID, currency string) (Reading, error) {
	currency = strings.ToUpper(currency)
	if currency == "" {
		currency = CurrencyUSD
	}

	r, err := Extract(payload, FieldPath{tokenID, strings.ToLower(currency)})
	var mfe *MissingFieldError
	switch {
	case err == nil && r.Type != gjson.Null:
	case err == nil, errors.As(err, &mfe):
		if currency == CurrencyUSD {
			return Reading{}, &MissingFieldError{Path: FieldPath{tokenID, "usd"}}
		}
		currency = CurrencyUSD
		r, err = Extract(payload, FieldPath{tokenID, "usd"})
		if err != nil {
			return Reading{}, err
		}
		if r.Type == gjson.Null {
			return Reading{}, &MissingFieldError{Path: FieldPath{tokenID, "usd"}}
		}
	default:
		return Reading{}, err
	}
	return Reading{Value: r.Float(), Unit: currency}, nil
}

// PriceSensors returns one price sensor per token id in ids.
func PriceSensors(src Source, ids []string, currency string, logger *slog.Logger) []*Sensor {
	device := Device{
		ID:           "helium.price",
		Name:         "Helium Price",
		Manufacturer: manufacturer,
	}

	out := make([]*Sensor, 0, len(ids))
	for _, id := range ids {
		name, ok := TokenIDNames[id]
		if !ok {
			name = strings.ToUpper(id)
		}
		tokenID := id
		out = append(out, newSensor(src, logger, Sensor{
			UniqueID:    "helium.price." + strings.ToLower(name),
			Name:        name,
			Device:      device,
			DeviceClass: "monetary",
			StateClass:  StateClassTotal,
			Precision:   8,
			Attribution: "Powered by CoinGecko",
			Path:        FieldPath{tokenID, strings.ToLower(currency)},
		}, func(payload json.RawMessage) (Reading, error) {
			return ResolvePrice(payload, tokenID, currency)
		}))
	}
	return out
}
