// Package process runs a single child process and streams its output.
//
// It is used for the RF24Node radio daemon, which prints received frames on
// stdout and must be killed forcefully (it ignores SIGTERM while blocked on
// the radio). The child gets its own process group so the kill also reaches
// anything it spawned, including the real binary behind sudo.
//
// Features:
//   - Optional sudo prefix for the binary and the kill
//   - Stdout delivered line by line on a channel
//   - Stderr captured into the structured log
//   - Procfs helpers to find, probe and kill processes by command name
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:   "RF24Node",
//	    Binary: "/opt/rf24mqtt/libs/RF24Node",
//	    Args:   []string{"-c", "76", "-n", "0"},
//	    Sudo:   true,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Terminate()
//
//	for line := range mgr.Lines() {
//	    handle(line)
//	}
package process
