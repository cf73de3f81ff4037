// Package processor converts raw radio values into published values.
//
// Transforms are declared per device in the device list:
//
//	processor:
//	  type: float        # passthrough (default), float, int
//	  scale: 0.1
//	  offset: -40
//	  precision: 1
//	  map: {"1": "on", "0": "off"}
//	  format: "%.1f"
package processor
