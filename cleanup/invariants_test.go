package cleanup

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/dshills/flowreap-go/cache"
	"github.com/dshills/flowreap-go/flow"
)

// checkInvariants asserts the structural invariants that must hold after
// every event, whatever the interleaving:
//
//  1. A deleted path's producing task has completed.
//  2. A deleted path has been published.
//  3. A deleted task has completed, has an empty publish queue, and all
//     its process and task consumers are closed/completed.
//  4. A deleted path's process and task consumers are closed/completed.
//  5. Early publish notifications are only held for paths whose producer
//     has not yet completed.
func checkInvariants(t *testing.T, e *Engine, label string) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()

	for path, ps := range e.paths {
		if !ps.deleted {
			continue
		}
		if !ps.published {
			t.Fatalf("%s: path %s deleted before published", label, path)
		}
		producer, ok := e.tasks[ps.producer]
		if !ok || !producer.completed {
			t.Fatalf("%s: path %s deleted before producer completed", label, path)
		}
		if !e.processConsumersClosed(producer.task.Process()) {
			t.Fatalf("%s: path %s deleted with open process consumers", label, path)
		}
		for id := range ps.consumers {
			if cs, ok := e.tasks[id]; !ok || !cs.completed {
				t.Fatalf("%s: path %s deleted with incomplete consumer %d", label, path, id)
			}
		}
	}

	for id, ts := range e.tasks {
		if !ts.deleted {
			continue
		}
		if !ts.completed {
			t.Fatalf("%s: task %d deleted before completed", label, id)
		}
		if len(ts.publishOutputs) != 0 {
			t.Fatalf("%s: task %d deleted with pending publications", label, id)
		}
		if !e.processConsumersClosed(ts.task.Process()) {
			t.Fatalf("%s: task %d deleted with open process consumers", label, id)
		}
		for cid := range ts.consumers {
			if cs, ok := e.tasks[cid]; !ok || !cs.completed {
				t.Fatalf("%s: task %d deleted with incomplete consumer %d", label, id, cid)
			}
		}
	}

	for path := range e.publishedOutputs {
		ps, ok := e.paths[path]
		if !ok {
			continue
		}
		if producer, ok := e.tasks[ps.producer]; ok && producer.completed {
			t.Fatalf("%s: early publication %s held past producer completion", label, path)
		}
	}
}

// TestRandomizedInterleavings drives the diamond topology through many
// seeded shuffles of its commuting events, checking the invariants after
// every single event and the deletion outcome at the end.
func TestRandomizedInterleavings(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		seed := seed
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))

			dag := flow.NewMockDAG().
				AddProcess("A", nil).
				AddProcess("B", nil).
				AddProcess("C", nil).
				AddProcess("D", nil).
				Connect("A", "B").
				Connect("A", "C").
				Connect("B", "D").
				Connect("C", "D")

			deleter := newMockDeleter()
			engine := New(deleter)
			if err := engine.OnFlowBegin(dag, cache.NewMemorySink()); err != nil {
				t.Fatal(err)
			}

			tA := newTask(1, "A (1)", "A")
			fA := tA.Dir + "/shared.out"
			fP := tA.Dir + "/published.out"
			tA.Outs = []flow.OutputFile{{Path: fA}, {Path: fP, Publish: true}}

			tB := newTask(2, "B (1)", "B")
			tB.InputFiles = map[string]string{"in": fA}
			tC := newTask(3, "C (1)", "C")
			tC.InputFiles = map[string]string{"in": fA}

			must := func(err error) {
				if err != nil {
					t.Fatalf("event failed: %v", err)
				}
			}

			// Fixed prefix: tasks become known, tA's output is linked to
			// its consumers.
			prefix := []func(){
				func() { must(engine.OnTaskPending(tA)) },
				func() { must(engine.OnTaskComplete(tA)) },
				func() { must(engine.OnTaskPending(tB)) },
				func() { must(engine.OnTaskPending(tC)) },
			}

			// Commuting tail, shuffled per seed. The publish event may
			// land anywhere, exercising the targeted delete attempt.
			tail := []func(){
				func() { must(engine.OnTaskComplete(tB)) },
				func() { must(engine.OnTaskComplete(tC)) },
				func() { engine.OnProcessClose("A") },
				func() { engine.OnProcessClose("B") },
				func() { engine.OnProcessClose("C") },
				func() { engine.OnProcessClose("D") },
				func() { engine.OnFilePublish("/results/published.out", fP) },
			}
			rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })

			for i, step := range prefix {
				step()
				checkInvariants(t, engine, fmt.Sprintf("prefix[%d]", i))
			}
			for i, step := range tail {
				step()
				checkInvariants(t, engine, fmt.Sprintf("tail[%d]", i))
			}

			// Every entity satisfies its predicate at workflow end. A
			// final sweep stands in for the next event's pass (a
			// targeted publish attempt may have been the last event),
			// after which everything must be deleted.
			engine.mu.Lock()
			engine.sweep()
			for id, ts := range engine.tasks {
				if !ts.deleted {
					t.Errorf("task %d not deleted at workflow end", id)
				}
			}
			for path, ps := range engine.paths {
				if !ps.deleted {
					t.Errorf("path %s not deleted at workflow end", path)
				}
			}
			engine.mu.Unlock()

			if n := deleter.callCount(tA.Dir); n != 1 {
				t.Errorf("tA dir deleted %d times, want 1", n)
			}
		})
	}
}

// TestEarlyPublishInterleaving replays the publish-before-complete race
// under invariant checking: the early notification set drains exactly at
// producer completion.
func TestEarlyPublishInterleaving(t *testing.T) {
	dag := flow.NewMockDAG().AddProcess("pub", nil)
	engine := New(newMockDeleter())
	if err := engine.OnFlowBegin(dag, cache.NewMemorySink()); err != nil {
		t.Fatal(err)
	}

	tP := newTask(1, "pub (1)", "pub")
	f := tP.Dir + "/out.txt"
	tP.Outs = []flow.OutputFile{{Path: f, Publish: true}}

	if err := engine.OnTaskPending(tP); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, engine, "pending")

	engine.OnFilePublish("/results/out.txt", f)
	checkInvariants(t, engine, "early publish")

	engine.mu.Lock()
	if _, ok := engine.publishedOutputs[f]; !ok {
		t.Fatal("early publication not recorded")
	}
	engine.mu.Unlock()

	if err := engine.OnTaskComplete(tP); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, engine, "complete")

	engine.OnProcessClose("pub")
	checkInvariants(t, engine, "close")
}
