// Package influxdb records gateway readings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every reading the
// gateway publishes to MQTT can also be written as an "rf24_reading" point,
// tagged with its topic and device id, so sensor history survives even
// though the broker only keeps the last retained value.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    log.Warn("influxdb write failed", "error", err)
//	})
//	client.RecordReading("/home/living/temperature", "01", "21.5")
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a
// callback. Connection and health check errors are returned directly.
package influxdb
