package gateway

import (
	"toursync/internal/domain"
	"toursync/internal/events"
)

const (
	WindowMinimize = "minimize"
	WindowMaximize = "maximize"
	WindowClose    = "close"
)

// EventWindowController forwards window commands to the presentation shell
// as window_command events. The gateway process owns no window itself.
type EventWindowController struct {
	events domain.EventPublisher
}

func NewEventWindowController(publisher domain.EventPublisher) *EventWindowController {
	return &EventWindowController{events: publisher}
}

func (c *EventWindowController) Minimize() { c.send(WindowMinimize) }
func (c *EventWindowController) Maximize() { c.send(WindowMaximize) }
func (c *EventWindowController) Close()    { c.send(WindowClose) }

func (c *EventWindowController) send(command string) {
	if c.events == nil {
		return
	}
	_ = c.events.PublishJSON(events.EventWindowCommand, events.WindowCommandPayload{Command: command})
}
