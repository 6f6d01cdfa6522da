package sensor

import "github.com/prometheus/client_golang/prometheus"

// Collector exports every available sensor as a gauge at scrape time. Only the
// first sensor with a given unique ID is exported.
type Collector struct {
	list func() []*Sensor
	desc *prometheus.Desc
}

func NewCollector(list func() []*Sensor) *Collector {
	return &Collector{
		list: list,
		desc: prometheus.NewDesc(
			"helium_monitor_sensor_value",
			"Current value of a sensor.",
			[]string{"sensor", "name", "device", "unit"},
			nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	seen := make(map[string]bool)
	for _, s := range c.list() {
		if seen[s.UniqueID] {
			continue
		}
		seen[s.UniqueID] = true
		st := s.State()
		if !st.Available {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, *st.Value,
			st.UniqueID, st.Name, st.Device.Name, st.Unit)
	}
}
