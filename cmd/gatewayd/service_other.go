//go:build !windows

package main

// runAsService is a no-op on non-Windows platforms: the gateway always runs
// in the foreground there (under systemd/launchd/docker, not an SCM), so
// every service subcommand falls through unhandled.
func runAsService(cmd string) (handled bool, err error) {
	return false, nil
}
