package sensor

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BaseUnitsPerToken converts reward amounts from base units to display units.
const BaseUnitsPerToken = 1_000_000

const (
	rewardsKey           = "rewards"
	rewardsAggregatedKey = "rewards_aggregated"
	defaultStakingToken  = TokenHNT
)

type rewardField struct {
	key  string
	name string
}

var rewardFields = []rewardField{
	{key: "claimed_rewards", name: "Claimed Rewards"},
	{key: "unclaimed_rewards", name: "Unclaimed Rewards"},
	{key: "total_rewards", name: "Total Rewards"},
}

var titleCaser = cases.Title(language.English)

// HotspotTitle turns a hyphenated hotspot name into title case words, e.g.
// "angry-purple-tiger" becomes "Angry Purple Tiger".
func HotspotTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "-", " "))
}

// HotspotSensors returns reward sensors for every hotspot and every
// aggregated token in payload. It returns nil when payload is empty.
func HotspotSensors(src Source, address string, payload json.RawMessage, logger *slog.Logger) []*Sensor {
	if len(payload) == 0 {
		return nil
	}
	addr4 := shortAddress(address)
	var out []*Sensor

	eachEntry(payload, rewardsKey, func(key string, v gjson.Result) {
		name := v.Get("name").String()
		if name == "" {
			name = key
		}
		device := Device{
			ID:           "helium.hotspot.rewards." + name,
			Name:         "Helium Hotspot " + HotspotTitle(name),
			Manufacturer: manufacturer,
		}
		token := strings.ToUpper(v.Get("token").String())
		out = append(out, rewardSet(src, logger, "helium.hotspot-reward."+addr4, device, rewardsKey, key, token)...)
	})

	device := Device{
		ID:           "helium.wallet.rewards." + addr4,
		Name:         "Helium Hotspot Reward Wallet " + addr4,
		Manufacturer: manufacturer,
	}
	eachEntry(payload, rewardsAggregatedKey, func(token string, _ gjson.Result) {
		out = append(out, rewardSet(src, logger, "helium.hotspot-reward."+addr4, device, rewardsAggregatedKey, token, strings.ToUpper(token))...)
	})
	return out
}

// StakingSensors returns reward sensors for every delegated position and every
// aggregated token in a staking rewards payload.
func StakingSensors(src Source, address string, payload json.RawMessage, logger *slog.Logger) []*Sensor {
	if len(payload) == 0 {
		return nil
	}
	addr4 := shortAddress(address)
	var out []*Sensor

	eachEntry(payload, rewardsKey, func(key string, v gjson.Result) {
		token := strings.ToUpper(v.Get("token").String())
		if token == "" {
			token = defaultStakingToken
		}
		device := Device{
			ID:           "helium.staking.position." + key,
			Name:         "Helium Staking Position " + shortAddress(key),
			Manufacturer: manufacturer,
		}
		out = append(out, rewardSet(src, logger, "helium.staking-reward."+addr4, device, rewardsKey, key, token)...)
	})

	device := Device{
		ID:           "helium.staking.rewards." + addr4,
		Name:         "Helium Staking Rewards Wallet " + addr4,
		Manufacturer: manufacturer,
	}
	eachEntry(payload, rewardsAggregatedKey, func(token string, _ gjson.Result) {
		out = append(out, rewardSet(src, logger, "helium.staking-reward."+addr4, device, rewardsAggregatedKey, token, strings.ToUpper(token))...)
	})
	return out
}

func rewardSet(src Source, logger *slog.Logger, idPrefix string, device Device, group, key, unit string) []*Sensor {
	out := make([]*Sensor, 0, len(rewardFields))
	for _, f := range rewardFields {
		path := FieldPath{group, key, f.key}
		out = append(out, newSensor(src, logger, Sensor{
			UniqueID:   idPrefix + "_" + group + "_" + key + "_" + f.key,
			Name:       f.name,
			Device:     device,
			Icon:       "mdi:hand-coin-outline",
			StateClass: StateClassTotalIncreasing,
			Precision:  2,
			Path:       path,
		}, fieldValue(path, BaseUnitsPerToken, unit)))
	}
	return out
}

// eachEntry calls fn for every member of the object (or array) under key, in
// payload order. Array members are keyed by index.
func eachEntry(payload json.RawMessage, key string, fn func(key string, v gjson.Result)) {
	r, err := Extract(payload, FieldPath{key})
	if err != nil {
		return
	}
	idx := 0
	r.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if !k.Exists() {
			name = strconv.Itoa(idx)
		}
		idx++
		fn(name, v)
		return true
	})
}
