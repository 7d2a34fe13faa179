package events

import (
	"testing"
	"time"
)

func TestMemoryPublisherDeliversToSubscriber(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe("task-1")
	p.Publish(NewEvent("PLANNED", "task-1", nil))

	select {
	case ev := <-ch:
		if ev.TaskID != "task-1" || ev.Type != "PLANNED" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event to be delivered")
	}
}

func TestMemoryPublisherGlobalSubscriber(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	global := p.Subscribe(GlobalTaskID)
	p.Publish(NewEvent("CODED", "task-2", nil))

	select {
	case ev := <-global:
		if ev.TaskID != "task-2" {
			t.Errorf("expected global subscriber to see task-2 event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected global subscriber to receive event")
	}
}

func TestMemoryPublisherUnsubscribe(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe("task-3")
	p.Unsubscribe("task-3", ch)

	if p.SubscriberCount("task-3") != 0 {
		t.Error("expected no subscribers after unsubscribe")
	}
}

func TestNopPublisher(t *testing.T) {
	p := NewNopPublisher()
	p.Publish(NewEvent("CREATED", "task-4", nil))
	ch := p.Subscribe("task-4")
	if _, ok := <-ch; ok {
		t.Error("expected a closed channel from NopPublisher.Subscribe")
	}
}
