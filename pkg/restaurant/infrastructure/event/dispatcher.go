package event

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/service"
)

// Dispatcher hands every event to each target in turn. A failing target does not stop the rest;
// the first error is returned once all targets have run.
type Dispatcher struct {
	targets []namedTarget
}

type namedTarget struct {
	name       string
	dispatcher service.EventDispatcher
}

var _ service.EventDispatcher = &Dispatcher{}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Add(name string, dispatcher service.EventDispatcher) *Dispatcher {
	d.targets = append(d.targets, namedTarget{name: name, dispatcher: dispatcher})
	return d
}

func (d *Dispatcher) Dispatch(event service.Event) error {
	var first error
	for _, t := range d.targets {
		if err := t.dispatcher.Dispatch(event); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"target": t.name,
				"event":  event.Type(),
			}).Warn("event target failed")
			if first == nil {
				first = errors.Wrapf(err, "dispatch to %s", t.name)
			}
		}
	}
	return first
}
