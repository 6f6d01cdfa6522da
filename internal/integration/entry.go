// Package integration turns configured entries into running instances: one
// backend client, the jobs it feeds and the sensors reading from them.
package integration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind selects what an entry monitors.
type Kind string

const (
	KindStats  Kind = "general_stats"
	KindPrice  Kind = "general_token_price"
	KindWallet Kind = "wallet"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Entry is one configured integration.
type Entry struct {
	Integration Kind   `json:"integration" validate:"required,oneof=general_stats general_token_price wallet"`
	Wallet      string `json:"wallet,omitempty" validate:"required_if=Integration wallet,omitempty,alphanum,min=4"`
}

// Validate checks the entry's fields.
func (e Entry) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid entry: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid entry: %w", err)
	}
	if e.Integration != KindWallet && e.Wallet != "" {
		return fmt.Errorf("invalid entry: wallet is only allowed for %s", KindWallet)
	}
	return nil
}

// ID is unique per configurable instance: the general kinds may be set up
// once, wallets once per address.
func (e Entry) ID() string {
	if e.Integration == KindWallet {
		return string(KindWallet) + ":" + e.Wallet
	}
	return string(e.Integration)
}

func (e Entry) Title() string {
	switch e.Integration {
	case KindStats:
		return "General Helium Stats"
	case KindPrice:
		return "Token Prices"
	case KindWallet:
		w := e.Wallet
		if len(w) > 4 {
			w = w[:4]
		}
		return "Wallet " + w
	default:
		return string(e.Integration)
	}
}

// ParseEntry parses "general_stats", "general_token_price" or
// "wallet:<address>".
func ParseEntry(s string) (Entry, error) {
	s = strings.TrimSpace(s)
	kind, wallet, _ := strings.Cut(s, ":")
	e := Entry{Integration: Kind(strings.TrimSpace(kind)), Wallet: strings.TrimSpace(wallet)}
	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return e, nil
}
