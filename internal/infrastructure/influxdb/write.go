package influxdb

import (
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementReading is the measurement every accepted reading is written to.
const MeasurementReading = "rf24_reading"

// RecordReading writes one published reading.
//
// The point is tagged with the MQTT topic and the radio device id. Numeric
// payloads are stored as a float "value" field so they can be graphed;
// anything else (for example "on") is stored as a string.
func (c *Client) RecordReading(topic, deviceID, value string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ReadingPoint(topic, deviceID, value, time.Now()))
	c.recorded.Add(1)
}

// ReadingPoint builds the point RecordReading writes.
func ReadingPoint(topic, deviceID, value string, ts time.Time) *write.Point {
	tags := map[string]string{"topic": topic}
	if deviceID != "" {
		tags["device_id"] = deviceID
	}

	return write.NewPoint(
		MeasurementReading,
		tags,
		map[string]interface{}{"value": fieldValue(value)},
		ts,
	)
}

// fieldValue returns value as a float64 when it parses as a finite number,
// otherwise the trimmed string.
func fieldValue(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !isSpecialFloat(trimmed) {
		return f
	}
	return trimmed
}

// isSpecialFloat reports the spellings ParseFloat accepts that InfluxDB
// cannot store as a float field.
func isSpecialFloat(s string) bool {
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}
