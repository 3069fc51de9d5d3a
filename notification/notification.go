// Package notification shows transient desktop toasts for capture
// results and failures.
package notification

import (
	"log"

	"github.com/gen2brain/beeep"
)

const appTitle = "HoldSense"

// maxBodyLen bounds toast bodies; longer messages are truncated.
const maxBodyLen = 200

// Show displays a desktop toast without blocking the caller.
func Show(message string) {
	body := truncate(message)
	go func() {
		if err := beeep.Notify(appTitle, body, ""); err != nil {
			log.Printf("notification: failed to show toast: %v", err)
		}
	}()
}

func truncate(s string) string {
	if len(s) > maxBodyLen {
		return s[:maxBodyLen] + "..."
	}
	return s
}
