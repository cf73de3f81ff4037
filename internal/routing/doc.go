// Package routing is the routing and duplicate-suppression engine of the
// gateway.
//
// Radio frames flow through the Translator:
//
//	"01:23.5{"  --ParseFrame-->  ("01", "23.5")
//	            --Registry----->  /home/living/temperature
//	            --DuplicateFilter (same value within the window? drop)
//	            --Processor---->  "23.5"
//	            ==> Publish{Topic: /home/living/temperature, Retain: true}
//
// Control messages flow the other way:
//
//	/home/garden/pump/set "on"  --Registry-->  "02~1"
//	            ==> Publish{Topic: /ipc/rf24_node, Retain: false}
//
// A message on the IPC-in topic (/ipc/rf24mqtt) carries a frame relayed by
// the radio process and is routed exactly like a frame read from its stdout.
//
// None of the types here lock. The gateway loop is their only caller.
package routing
