package queue

import (
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

func TestHeartbeatCapsAt99(t *testing.T) {
	tr := NewTracker(time.Millisecond, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	// drive ticks directly; the ticker only calls tick
	for i := 0; i < 150; i++ {
		tr.tick("j1")
	}

	snap, ok := tr.Snapshot("j1")
	if !ok {
		t.Fatal("snapshot missing")
	}
	if snap.Progress != 99 {
		t.Fatalf("progress = %d, want 99", snap.Progress)
	}
}

func TestHeartbeatStopIsIdempotent(t *testing.T) {
	tr := NewTracker(time.Millisecond, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	stop := tr.Heartbeat("j1")
	time.Sleep(10 * time.Millisecond)
	stop()
	stop()

	before, _ := tr.Snapshot("j1")
	time.Sleep(10 * time.Millisecond)
	after, _ := tr.Snapshot("j1")
	if before.Progress != after.Progress {
		t.Fatalf("progress moved after stop: %d -> %d", before.Progress, after.Progress)
	}
}

func TestCompleteStopsHeartbeat(t *testing.T) {
	tr := NewTracker(time.Millisecond, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	stop := tr.Heartbeat("j1")
	defer stop()

	tr.SetTranscript("j1", "hello")
	tr.Complete("j1")
	time.Sleep(5 * time.Millisecond)

	snap, _ := tr.Snapshot("j1")
	if snap.Stage != types.StageCompleted || snap.Progress != 100 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Transcript != "" {
		t.Fatal("transcript should be cleared once results are durable")
	}
}

func TestFailKeepsResults(t *testing.T) {
	tr := NewTracker(time.Second, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	tr.tick("j1")

	sum := &types.SummaryContent{MainSummary: "m"}
	tr.Fail("j1", types.KindPersistence, "Results could not be saved.", "text", sum)

	snap, _ := tr.Snapshot("j1")
	if snap.Stage != types.StageError || snap.Progress != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.ErrorCode != "ERR_SAVE_FAILED" || snap.Transcript != "text" || snap.Summary != sum {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestBeginRejectsDuplicateKey(t *testing.T) {
	tr := NewTracker(time.Second, time.Hour)
	if err := tr.Begin("j1", "u1", "k"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tr.Begin("j2", "u1", "k"); err != ErrInFlight {
		t.Fatalf("second Begin = %v, want ErrInFlight", err)
	}

	tr.Fail("j1", types.KindTransport, "x", "", nil)
	if err := tr.Begin("j2", "u1", "k"); err != nil {
		t.Fatalf("Begin after settle: %v", err)
	}
}

func TestDiscardReleasesKey(t *testing.T) {
	tr := NewTracker(time.Second, time.Hour)
	_ = tr.Begin("j1", "u1", "k")
	tr.Discard("j1")

	if _, ok := tr.Snapshot("j1"); ok {
		t.Fatal("discarded entry still visible")
	}
	if err := tr.Begin("j2", "u1", "k"); err != nil {
		t.Fatalf("Begin after discard: %v", err)
	}
}

func TestSubscribeReceivesUpdatesAndCloses(t *testing.T) {
	tr := NewTracker(time.Second, time.Hour)
	_ = tr.Begin("j1", "u1", "k")

	ch, cancel, ok := tr.Subscribe("j1")
	if !ok {
		t.Fatal("Subscribe returned false")
	}
	defer cancel()

	tr.SetMessage("j1", "Transcribing audio...")
	tr.Complete("j1")

	var stages []types.Stage
	for snap := range ch {
		stages = append(stages, snap.Stage)
	}
	if len(stages) < 2 || stages[len(stages)-1] != types.StageCompleted {
		t.Fatalf("stages = %v", stages)
	}
}

// TestSettleReachesSaturatedSubscriber checks a subscriber that never drained
// its buffer still ends on the terminal snapshot.
func TestSettleReachesSaturatedSubscriber(t *testing.T) {
	tr := NewTracker(time.Hour, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatal(err)
	}
	updates, _, ok := tr.Subscribe("j1")
	if !ok {
		t.Fatal("Subscribe failed")
	}

	for i := 0; i < 20; i++ {
		tr.SetMessage("j1", "step")
	}
	tr.Complete("j1")

	var last Snapshot
	n := 0
	for snap := range updates {
		last = snap
		n++
	}
	if n == 0 {
		t.Fatal("no snapshots received")
	}
	if last.Stage != types.StageCompleted || last.Progress != 100 {
		t.Fatalf("last snapshot = %s/%d after %d updates, want completed/100", last.Stage, last.Progress, n)
	}
}

func TestSettledStagesFollowTransitions(t *testing.T) {
	tr := NewTracker(time.Hour, time.Hour)
	if err := tr.Begin("j1", "u1", "k1"); err != nil {
		t.Fatal(err)
	}
	tr.Complete("j1")

	// a late failure does not overwrite a completed job
	tr.Fail("j1", types.KindTransport, "late", "", nil)
	if snap, _ := tr.Snapshot("j1"); snap.Stage != types.StageCompleted || snap.Progress != 100 {
		t.Fatalf("snapshot = %+v, want completed", snap)
	}
	if err := tr.Begin("j1", "u1", "k1"); err != ErrBadTransition {
		t.Fatalf("Begin on completed job = %v, want ErrBadTransition", err)
	}

	if err := tr.Begin("j2", "u1", "k2"); err != nil {
		t.Fatal(err)
	}
	tr.Fail("j2", types.KindTransport, "down", "", nil)
	if err := tr.Begin("j2", "u1", "k2"); err != nil {
		t.Fatalf("Begin after error = %v", err)
	}
	if snap, _ := tr.Snapshot("j2"); snap.Stage != types.StageProcessing {
		t.Fatalf("stage = %s, want processing", snap.Stage)
	}
}

func TestSubscribeUnknownJob(t *testing.T) {
	tr := NewTracker(time.Second, time.Hour)
	if _, _, ok := tr.Subscribe("missing"); ok {
		t.Fatal("Subscribe should fail for unknown job")
	}
}

func TestPruneDropsOldSettledEntries(t *testing.T) {
	tr := NewTracker(time.Second, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	_ = tr.Begin("done", "u1", "k1")
	_ = tr.Begin("running", "u1", "k2")
	tr.Complete("done")

	now = now.Add(2 * time.Minute)
	if n := tr.Prune(); n != 1 {
		t.Fatalf("Prune = %d, want 1", n)
	}
	if _, ok := tr.Snapshot("running"); !ok {
		t.Fatal("running entry should survive prune")
	}
	if !tr.Owns("running") || tr.Owns("done") {
		t.Fatal("Owns mismatch")
	}
}
