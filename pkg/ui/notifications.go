package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

type commandSender struct {
	name string
	args func(title, message string) []string
}

func (c commandSender) Send(title, message string) error {
	return exec.Command(c.name, c.args(title, message)...).Run()
}

// Notifier announces the end of a run on the desktop
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the platform sender. Unsupported platforms get a
// notifier that does nothing.
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: commandSender{name: "notify-send", args: func(t, m string) []string {
			return []string{t, m}
		}}}
	case "darwin":
		return &Notifier{sender: commandSender{name: "osascript", args: func(t, m string) []string {
			return []string{"-e", fmt.Sprintf("display notification %q with title %q", m, t)}
		}}}
	}
	return &Notifier{}
}

// NewNotifierWithSender is used by tests
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify sends title and message. Delivery errors are ignored.
func (n *Notifier) Notify(title, message string) {
	if n.sender == nil {
		return
	}
	_ = n.sender.Send(title, message)
}
