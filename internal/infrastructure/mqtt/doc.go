// Package mqtt provides the broker side of the RF24 gateway.
//
// This package manages:
//   - Connection to the broker, one attempt per Connect call
//   - Retained reading publishes and non-retained command publishes
//   - Subscriptions to the IPC-in topic and every device control topic
//   - Last Will and Testament (LWT) on the status topic
//
// Reconnection is driven by the gateway loop rather than paho: when
// IsConnected reports false the loop goes back to CONNECTING and calls
// Connect again after the poll interval. Tracked subscriptions are
// restored by the on-connect handler.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err := client.SubscribeAll([]string{"/ipc/rf24mqtt", "/home/garden/pump/set"},
//	    func(topic string, payload []byte) error {
//	        inbox <- message{topic, payload}
//	        return nil
//	    })
//
//	client.Publish("/home/living/temperature", []byte("21.5"), 0, true)
package mqtt
