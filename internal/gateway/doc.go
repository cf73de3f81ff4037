// Package gateway runs the RF24-to-MQTT bridge loop.
//
// The gateway moves through four states:
//
//	init -> connecting -> running -> shutdown
//	            ^            |
//	            +------------+  (broker connection lost)
//
// In init the device list is loaded into the topic registry. In connecting
// the broker is dialled once per poll interval and RF24Node is started the
// first time through; failing to start RF24Node ends the run. In running
// each step forwards one radio frame or one broker message through the
// translator, or sweeps the duplicate filter, or reloads the device list.
// Shutdown kills RF24Node and closes the broker session.
//
// Broker callbacks never touch routing state directly. They enqueue onto a
// bounded inbox that the loop drains, so the registry, the translator and
// the duplicate filter are only used from the Run goroutine.
package gateway
