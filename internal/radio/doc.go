// Package radio runs the RF24Node binary that drives the nRF24L01+ radio.
//
// RF24Node is launched with arguments derived from the rf24 section of the
// configuration, usually through sudo because it needs SPI and GPIO access:
//
//	rf24:
//	  command: "libs/RF24Node"
//	  channel: 76
//	  palevel: 3
//	  datarate: 2
//	  node: "00"
//	  key: "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16"
//
// Each line RF24Node prints on stdout is a raw frame of the form
// "<device-id>:<value>{". The Manager exposes those lines as a channel and
// kills the process with SIGKILL on Disconnect.
package radio
