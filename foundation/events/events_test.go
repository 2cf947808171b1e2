package events_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/statechain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const blockMsg = `state: block: {"hash":"0x01","number":1,"parent":"0x00","trans":2,"head":"0x01"}`

func Test_Classify(t *testing.T) {
	t.Log("Given the need to type the messages of the node core.")
	{
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		tt := []struct {
			name string
			msg  string
			kind events.Kind
			data bool
		}{
			{"block", blockMsg, events.KindBlock, true},
			{"reorg", "chain: reorg: old[3:0xaa]: new[5:0xbb]: depth[3]", events.KindReorg, false},
			{"log", "worker: runMiningOperation: MINING: started", events.KindLog, false},
			{"broken block", "state: block: {", events.KindBlock, false},
		}

		for testID, test := range tt {
			t.Logf("\tTest %d:\tWhen classifying a %s message.", testID, test.name)
			{
				evt := events.Classify(test.msg, now)

				if evt.Kind != test.kind || !evt.Time.Equal(now) {
					t.Fatalf("\t%s\tTest %d:\tShould get kind %s, got %s.", failed, testID, test.kind, evt.Kind)
				}
				t.Logf("\t%s\tTest %d:\tShould get kind %s.", success, testID, test.kind)

				if (len(evt.Data) > 0) != test.data {
					t.Fatalf("\t%s\tTest %d:\tShould carry a payload only for a valid block message: %q", failed, testID, evt.Data)
				}
				t.Logf("\t%s\tTest %d:\tShould carry a payload only for a valid block message.", success, testID)
			}
		}
	}
}

func Test_ParseKinds(t *testing.T) {
	t.Log("Given the need to parse the kinds a receiver follows.")
	{
		t.Logf("\tTest 0:\tWhen the list is valid.")
		{
			kinds, err := events.ParseKinds("block, reorg")
			if err != nil || len(kinds) != 2 || kinds[0] != events.KindBlock || kinds[1] != events.KindReorg {
				t.Fatalf("\t%s\tTest 0:\tShould parse both kinds: %v %v", failed, kinds, err)
			}
			t.Logf("\t%s\tTest 0:\tShould parse both kinds.", success)

			if kinds, err := events.ParseKinds(""); err != nil || kinds != nil {
				t.Fatalf("\t%s\tTest 0:\tShould follow every kind on an empty list.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould follow every kind on an empty list.", success)
		}

		t.Logf("\tTest 1:\tWhen the list has an unknown kind.")
		{
			if _, err := events.ParseKinds("block,gossip"); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the list.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the list.", success)
		}
	}
}

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out events to registered receivers.")
	{
		evts := events.New()

		t.Logf("\tTest 0:\tWhen receivers follow different kinds.")
		{
			all := evts.Acquire("all")
			blocks := evts.Acquire("blocks", events.KindBlock)

			if evts.Acquire("all") != all {
				t.Fatalf("\t%s\tTest 0:\tShould return the same channel for the same id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould return the same channel for the same id.", success)

			evts.Send("worker: miningOperations: G started")
			evts.Send(blockMsg)

			if evt := <-all; evt.Kind != events.KindLog {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the log event first, got %s.", failed, evt.Kind)
			}
			if evt := <-all; evt.Kind != events.KindBlock {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the block event, got %s.", failed, evt.Kind)
			}
			t.Logf("\t%s\tTest 0:\tShould deliver every kind to an unfiltered receiver.", success)

			if evt := <-blocks; evt.Kind != events.KindBlock || string(evt.Data) == "" {
				t.Fatalf("\t%s\tTest 0:\tShould deliver only the block event, got %s.", failed, evt.Kind)
			}
			select {
			case evt := <-blocks:
				t.Fatalf("\t%s\tTest 0:\tShould not deliver other kinds, got %s.", failed, evt.Kind)
			default:
			}
			t.Logf("\t%s\tTest 0:\tShould deliver only followed kinds.", success)
		}

		t.Logf("\tTest 1:\tWhen a receiver does not keep up.")
		{
			for range 500 {
				evts.Send("flood")
			}
			t.Logf("\t%s\tTest 1:\tShould not block the sender.", success)
		}

		t.Logf("\tTest 2:\tWhen receivers are released.")
		{
			if err := evts.Release("all"); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to release a receiver: %v", failed, err)
			}
			if err := evts.Release("all"); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould not release an unknown receiver.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould release a receiver once.", success)

			blocks := evts.Acquire("blocks")
			evts.Shutdown()

			if evts.Count() != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould remove every receiver on shutdown.", failed)
			}

			for range blocks {
			}
			t.Logf("\t%s\tTest 2:\tShould close every receiver on shutdown.", success)
		}
	}
}
