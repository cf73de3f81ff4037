// Package device models the device list shared by the sensor network's bridges.
//
// A device is routed by RF24MQTT only when it carries an rf24mqtt descriptor:
//
//	devices:
//	  - id: "01"
//	    topic: /home/living/temperature
//	    rf24mqtt: true
//	  - id: "02"
//	    topic: /home/garden/pump
//	    rf24mqtt:
//	      controllable: true
//	      control_values:
//	        "on": "02~1"
//	        "off": "02~0"
//
// Descriptors are validated once at load time. The list comes from a YAML
// file (FileSource) or from the SQLite catalogue (SQLiteRepository); both
// implement Source.
package device
