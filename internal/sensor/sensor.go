// Package sensor turns job payloads into named scalar readings with display
// metadata. Sensors never fetch; they read the last payload of their job.
package sensor

import (
	"encoding/json"
	"errors"
	"log/slog"
)

const manufacturer = "Helium"

// StateClass tells consumers how a value evolves over time.
type StateClass string

const (
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotal           StateClass = "total"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

// Source is anything holding a last known payload, usually a coordinator job.
type Source interface {
	Name() string
	LastPayload() json.RawMessage
}

// Device groups sensors that describe the same physical or logical thing.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model,omitempty"`
}

// Reading is a resolved value and its unit.
type Reading struct {
	Value float64
	Unit  string
}

type valueFunc func(payload json.RawMessage) (Reading, error)

// Sensor binds a source and a field path to display metadata.
type Sensor struct {
	UniqueID    string
	Name        string
	Device      Device
	Icon        string
	DeviceClass string
	StateClass  StateClass
	Precision   int
	Attribution string
	Path        FieldPath

	source Source
	value  valueFunc
	logger *slog.Logger
}

// State is the JSON view of a sensor at one point in time.
type State struct {
	UniqueID    string     `json:"unique_id"`
	Name        string     `json:"name"`
	Device      Device     `json:"device"`
	Job         string     `json:"job"`
	Path        string     `json:"path"`
	Icon        string     `json:"icon,omitempty"`
	DeviceClass string     `json:"device_class,omitempty"`
	StateClass  StateClass `json:"state_class,omitempty"`
	Precision   int        `json:"precision"`
	Attribution string     `json:"attribution,omitempty"`
	Available   bool       `json:"available"`
	Value       *float64   `json:"value"`
	Unit        string     `json:"unit,omitempty"`
}

// Read resolves the current value from the source payload.
func (s *Sensor) Read() (Reading, error) {
	return s.value(s.source.LastPayload())
}

// Job returns the name of the source job.
func (s *Sensor) Job() string { return s.source.Name() }

// State reads the sensor. Extraction errors make the sensor unavailable; a
// missing field is logged since it means the payload changed shape.
func (s *Sensor) State() State {
	st := State{
		UniqueID:    s.UniqueID,
		Name:        s.Name,
		Device:      s.Device,
		Job:         s.source.Name(),
		Path:        s.Path.String(),
		Icon:        s.Icon,
		DeviceClass: s.DeviceClass,
		StateClass:  s.StateClass,
		Precision:   s.Precision,
		Attribution: s.Attribution,
	}

	r, err := s.Read()
	if err != nil {
		if !errors.Is(err, ErrNoPayload) {
			s.logger.Warn("sensor value unavailable", "sensor", s.UniqueID, "error", err)
		}
		return st
	}
	v := r.Value
	st.Available = true
	st.Value = &v
	st.Unit = r.Unit
	return st
}

// fieldValue reads a number at path, divides it by divisor and reports unit.
func fieldValue(path FieldPath, divisor float64, unit string) valueFunc {
	return func(payload json.RawMessage) (Reading, error) {
		v, err := Number(payload, path)
		if err != nil {
			return Reading{}, err
		}
		if divisor != 0 && divisor != 1 {
			v /= divisor
		}
		return Reading{Value: v, Unit: unit}, nil
	}
}

func newSensor(src Source, logger *slog.Logger, s Sensor, value valueFunc) *Sensor {
	if logger == nil {
		logger = slog.Default()
	}
	s.source = src
	s.value = value
	s.logger = logger
	return &s
}
