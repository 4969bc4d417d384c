package guard

import (
	"context"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

type ErrEventStopped struct{}

func (e ErrEventStopped) Error() string {
	return "Event stopped"
}

type Event interface {
	GetName() string
}

type EventSubscriber func(context.Context, Event) error

type EventDispatcher interface {
	Configure(cfg EventDispatcherConfig)
	Subscribe(string, EventSubscriber)
	Dispatch(ctx context.Context, event Event) error
}

type ListenerEntry struct {
	Event      string
	Subscriber EventSubscriber
	Priority   uint8
}

type EventDispatcherConfig []ListenerEntry

type dispatcher struct {
	subscribers hashmap.HashMap
}

func NewDispatcher() EventDispatcher {
	return &dispatcher{}
}

// Configure subscribes entries, higher priority first.
func (d *dispatcher) Configure(cfg EventDispatcherConfig) {
	sort.SliceStable(cfg, func(i, j int) bool {
		return cfg[i].Priority > cfg[j].Priority
	})
	for _, c := range cfg {
		d.Subscribe(c.Event, c.Subscriber)
	}
}

func (d *dispatcher) Subscribe(evt string, subscriber EventSubscriber) {
	var s = []EventSubscriber{subscriber}
	subs, ok := d.subscribers.Get(evt)
	if ok {
		existing := subs.([]EventSubscriber)
		s = append(append(make([]EventSubscriber, 0, len(existing)+1), existing...), subscriber)
	}
	d.subscribers.Set(evt, s)
}

func (d *dispatcher) Dispatch(ctx context.Context, event Event) error {
	subs, ok := d.subscribers.Get(event.GetName())
	if !ok {
		return nil
	}
	for _, sub := range subs.([]EventSubscriber) {
		if err := sub(ctx, event); err != nil {
			if errors.As(err, &ErrEventStopped{}) {
				break
			}
			return err
		}
	}
	return nil
}

// dispatchEventSilent never fails the request; subscriber errors are only logged.
func dispatchEventSilent(ctx context.Context, dispatcher EventDispatcher, event Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Dispatch(ctx, event); err != nil {
		logger.WithField("event", event.GetName()).Errorf("event subscriber failed: %v", err)
	}
}
