package events_test

import (
	"testing"

	"github.com/ardanlabs/statechain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestEvents(t *testing.T) {
	t.Log("Given the need to fan out events to receivers.")
	{
		t.Logf("\tTest 0:\tWhen two receivers are registered.")
		{
			evts := events.New()
			a := evts.Acquire("a")
			b := evts.Acquire("b")

			if evts.Acquire("a") != a {
				t.Fatalf("\t%s\tTest 0:\tShould get the same channel for the same id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get the same channel for the same id.", success)

			evts.Send("block[1]")
			if <-a != "block[1]" || <-b != "block[1]" {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the event to both.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould deliver the event to both.", success)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to release: %v", failed, err)
			}
			if _, open := <-a; open {
				t.Fatalf("\t%s\tTest 0:\tShould close a released channel.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close a released channel.", success)

			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail to release twice.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail to release twice.", success)

			evts.Shutdown()
			if _, open := <-b; open || evts.Count() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould close every channel on shutdown.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close every channel on shutdown.", success)
		}
	}
}
