package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
)

// ErrNotNumeric is returned when a numeric transform receives a value that
// does not parse as a number.
var ErrNotNumeric = errors.New("processor: value is not numeric")

// Processor turns a raw radio value into the value published on topic.
type Processor interface {
	Process(topic, value string) (string, error)
}

// Passthrough returns every value unchanged.
type Passthrough struct{}

// Process implements Processor.
func (Passthrough) Process(_, value string) (string, error) {
	return value, nil
}

// Table applies per-topic transforms taken from the device list.
// Topics without a transform pass through unchanged.
//
// A Table is immutable after New and safe for concurrent use.
type Table struct {
	byTopic map[string]device.Transform
}

// New builds a Table from the participating devices that declare a processor block.
func New(devices []device.Device) *Table {
	t := &Table{byTopic: make(map[string]device.Transform)}
	for _, d := range devices {
		if !d.Participates() || d.Transform == nil {
			continue
		}
		t.byTopic[d.Topic] = *d.Transform
	}
	return t
}

// Len returns the number of topics with a transform.
func (t *Table) Len() int {
	return len(t.byTopic)
}

// Process implements Processor.
func (t *Table) Process(topic, value string) (string, error) {
	tr, ok := t.byTopic[topic]
	if !ok {
		return value, nil
	}
	return Apply(tr, value)
}

// Apply runs a single transform on value.
//
// Order: map lookup, then numeric conversion (scale, offset, rounding), then format.
func Apply(tr device.Transform, value string) (string, error) {
	if mapped, ok := tr.Map[value]; ok {
		value = mapped
	}

	switch tr.Type {
	case "", "passthrough":
		if tr.Format != "" {
			return fmt.Sprintf(tr.Format, value), nil
		}
		return value, nil
	case "float", "int":
	default:
		return value, fmt.Errorf("processor: unknown type %q", tr.Type)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value, fmt.Errorf("%w: %q", ErrNotNumeric, value)
	}

	if tr.Scale != nil {
		f *= *tr.Scale
	}
	f += tr.Offset

	if tr.Type == "int" {
		n := int64(math.Round(f))
		if tr.Format != "" {
			return fmt.Sprintf(tr.Format, n), nil
		}
		return strconv.FormatInt(n, 10), nil
	}

	precision := -1
	if tr.Precision != nil {
		precision = *tr.Precision
		f = round(f, precision)
	}
	if tr.Format != "" {
		return fmt.Sprintf(tr.Format, f), nil
	}
	return strconv.FormatFloat(f, 'f', precision, 64), nil
}

func round(f float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(f*p) / p
}
