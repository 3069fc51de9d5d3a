//go:build !windows

package main

// enableDPIAwareness is a no-op away from Windows; other platforms report
// scaled geometry consistently without opt-in.
func enableDPIAwareness() {}
