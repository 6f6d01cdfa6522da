package sensor

import (
	"log/slog"
	"strings"
)

// Tokens tracked on the network.
const (
	TokenHNT    = "HNT"
	TokenIOT    = "IOT"
	TokenMobile = "MOBILE"
	TokenSOL    = "SOL"
)

// StatsTokens are the sub-networks reported by the stats endpoint.
var StatsTokens = []string{TokenIOT, TokenMobile}

type statDescription struct {
	key       string
	name      string
	icon      string
	withUnit  bool
	precision int
}

var statDescriptions = []statDescription{
	{key: "total_hotspots", name: "Total Hotspots", icon: "mdi:router-wireless"},
	{key: "active_hotspots", name: "Active Hotspots", icon: "mdi:router-wireless"},
	{key: "total_cities", name: "Total Cities", icon: "mdi:city"},
	{key: "total_countries", name: "Total Countries", icon: "mdi:earth"},
	{key: "daily_average_rewards", name: "Daily Average Rewards", icon: "mdi:hand-coin-outline", withUnit: true, precision: 5},
}

// StatsSensors returns the network statistics sensors for every stats token.
func StatsSensors(src Source, logger *slog.Logger) []*Sensor {
	var out []*Sensor
	for _, token := range StatsTokens {
		deviceID := "helium.stats." + token
		device := Device{
			ID:           deviceID,
			Name:         "Helium Stats " + token,
			Manufacturer: manufacturer,
			Model:        token,
		}
		for _, d := range statDescriptions {
			unit := ""
			if d.withUnit {
				unit = token
			}
			path := FieldPath{"stats", strings.ToLower(token), d.key}
			out = append(out, newSensor(src, logger, Sensor{
				UniqueID:   deviceID + "_" + strings.ToLower(d.key),
				Name:       d.name,
				Device:     device,
				Icon:       d.icon,
				StateClass: StateClassMeasurement,
				Precision:  d.precision,
				Path:       path,
			}, fieldValue(path, 1, unit)))
		}
	}
	return out
}
