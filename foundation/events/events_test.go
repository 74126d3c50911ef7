package events_test

import (
	"testing"

	"github.com/ardanlabs/powledger/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_NewEvent(t *testing.T) {
	type table struct {
		name    string
		message string
		kind    string
		text    string
	}

	tt := []table{
		{name: "state", message: "state: Reconcile: started", kind: "state", text: "Reconcile: started"},
		{name: "block", message: `block: {"hash":"00ab"}`, kind: "block", text: `{"hash":"00ab"}`},
		{name: "plain", message: "started", kind: "node", text: "started"},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ev := events.NewEvent(tst.message)

			if ev.Kind != tst.kind || ev.Message != tst.text || ev.Time.IsZero() {
				t.Fatalf("\t%s\tTest %s:\tShould parse the event, got %+v.", failed, tst.name, ev)
			}
			t.Logf("\t%s\tTest %s:\tShould parse the event.", success, tst.name)
		}

		t.Run(tst.name, f)
	}
}

func Test_Events(t *testing.T) {
	evts := events.New()

	all := evts.Acquire("all")
	blocks := evts.Acquire("blocks", "block")

	t.Log("Given the need to deliver events to subscribers.")
	{
		evts.Send(events.NewEvent("state: Reconcile: started"))
		evts.Send(events.NewEvent(`block: {}`))

		if ev := <-all; ev.Kind != "state" {
			t.Fatalf("\t%s\tShould deliver every event in order, got %q.", failed, ev.Kind)
		}
		if ev := <-all; ev.Kind != "block" {
			t.Fatalf("\t%s\tShould deliver every event in order, got %q.", failed, ev.Kind)
		}
		t.Logf("\t%s\tShould deliver every event in order.", success)

		if ev := <-blocks; ev.Kind != "block" || len(blocks) != 0 {
			t.Fatalf("\t%s\tShould only deliver the subscribed kinds, got %q.", failed, ev.Kind)
		}
		t.Logf("\t%s\tShould only deliver the subscribed kinds.", success)

		if ch := evts.Acquire("blocks"); ch != blocks {
			t.Fatalf("\t%s\tShould return the same channel for the same id.", failed)
		}
		t.Logf("\t%s\tShould return the same channel for the same id.", success)

		if err := evts.Release("all"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a channel: %s", failed, err)
		}
		if _, open := <-all; open {
			t.Fatalf("\t%s\tShould close a released channel.", failed)
		}
		if err := evts.Release("all"); err == nil {
			t.Fatalf("\t%s\tShould not release the same channel twice.", failed)
		}
		t.Logf("\t%s\tShould close a released channel once.", success)

		evts.Shutdown()

		if _, open := <-blocks; open {
			t.Fatalf("\t%s\tShould close every channel on shutdown.", failed)
		}
		t.Logf("\t%s\tShould close every channel on shutdown.", success)
	}
}
