// Package notify raises a desktop notification for every ingested call.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/rdio-stats/internal/models"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(title, body string) error
}

// Desktop sends notifications through the OS notification daemon.
type Desktop struct {
	// AppName is shown by daemons that group notifications by application.
	AppName string
}

// NewDesktop creates a desktop notifier.
func NewDesktop(appName string) *Desktop {
	if appName != "" {
		beeep.AppName = appName
	}
	return &Desktop{AppName: appName}
}

// Notify implements Notifier.
func (d *Desktop) Notify(title, body string) error {
	if err := beeep.Notify(title, body, ""); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}

// Noop discards notifications.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(string, string) error { return nil }

// Message builds the title and body announcing a call on tg.
func Message(tg models.Talkgroup) (title, body string) {
	title = "Call: " + tg.DisplayName
	body = fmt.Sprintf("%s · %s", tg.Category, tg.ID)
	return title, body
}
