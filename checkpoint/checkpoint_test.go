package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(Options{Dir: dir, Retention: retention})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, dir
}

func TestRecordAndResume(t *testing.T) {
	m, _ := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.Begin(ctx, "run-1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, u := range []string{"acme", "globex", "initech"} {
		if err := m.RecordCompleted(ctx, "run-1", u); err != nil {
			t.Fatalf("RecordCompleted(%s): %v", u, err)
		}
	}

	st, ok, err := m.GetResumeState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetResumeState: ok=%v err=%v", ok, err)
	}
	if st.RunID != "run-1" || st.Completed {
		t.Fatalf("unexpected state: %+v", st)
	}
	if len(st.CompletedUnits) != 3 {
		t.Fatalf("CompletedUnits = %v", st.CompletedUnits)
	}
	// Units come back sorted regardless of completion order.
	if st.CompletedUnits[0] != "acme" || st.CompletedUnits[2] != "initech" {
		t.Errorf("units not sorted: %v", st.CompletedUnits)
	}
}

func TestResumeSurvivesManagerRestart(t *testing.T) {
	m1, dir := newTestManager(t, 0)
	ctx := context.Background()

	if err := m1.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	if err := m1.RecordCompleted(ctx, "run-1", "globex"); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	// New Manager over the same directory, as after a process crash.
	m2, err := NewManager(Options{Dir: dir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	st, ok, err := m2.GetResumeState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetResumeState: ok=%v err=%v", ok, err)
	}
	if len(st.CompletedUnits) != 2 {
		t.Fatalf("CompletedUnits = %v", st.CompletedUnits)
	}

	// Recording through the new Manager continues, not restarts, the run.
	if err := m2.RecordCompleted(ctx, "run-1", "initech"); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	st, _, _ = m2.GetResumeState(ctx, "run-1")
	if len(st.CompletedUnits) != 3 {
		t.Fatalf("after resume, CompletedUnits = %v", st.CompletedUnits)
	}
	if st.Generation <= 2 {
		t.Errorf("generation should advance past the recovered one, got %d", st.Generation)
	}
}

func TestRemainingPreservesCallerOrder(t *testing.T) {
	st := ResumeState{CompletedUnits: []string{"b", "d"}}
	got := st.Remaining([]string{"d", "c", "b", "a"})
	if len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Fatalf("Remaining = %v, want [c a]", got)
	}
	if out := st.Remaining(nil); len(out) != 0 {
		t.Errorf("Remaining(nil) = %v", out)
	}
}

func TestCorruptNewestFallsBackOneGeneration(t *testing.T) {
	m, dir := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCompleted(ctx, "run-1", "globex"); err != nil {
		t.Fatal(err)
	}

	// Flip a byte in the newest generation's unit list; its digest no
	// longer verifies.
	newest := filepath.Join(dir, "run-1", generationName(2))
	b, err := os.ReadFile(newest)
	if err != nil {
		t.Fatal(err)
	}
	var gf generationFile
	if err := json.Unmarshal(b, &gf); err != nil {
		t.Fatal(err)
	}
	gf.CompletedUnits = append(gf.CompletedUnits, "forged")
	tampered, _ := json.Marshal(gf)
	if err := os.WriteFile(newest, tampered, 0o644); err != nil {
		t.Fatal(err)
	}

	st, ok, err := m.GetResumeState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetResumeState: ok=%v err=%v", ok, err)
	}
	if st.Generation != 1 {
		t.Errorf("should fall back to generation 1, got %d", st.Generation)
	}
	if len(st.CompletedUnits) != 1 || st.CompletedUnits[0] != "acme" {
		t.Errorf("fallback units = %v, want [acme]", st.CompletedUnits)
	}
}

func TestAllGenerationsCorruptMeansNoCheckpoint(t *testing.T) {
	m, dir := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCompleted(ctx, "run-1", "globex"); err != nil {
		t.Fatal(err)
	}
	runDir := filepath.Join(dir, "run-1")
	gens, err := os.ReadDir(runDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, de := range gens {
		if err := os.WriteFile(filepath.Join(runDir, de.Name()), []byte("{torn"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, ok, err := m.GetResumeState(ctx, "run-1")
	if err != nil {
		t.Fatalf("corruption must not surface as an error: %v", err)
	}
	if ok {
		t.Error("all-corrupt run should report no usable checkpoint")
	}
}

func TestUnknownRunHasNoCheckpoint(t *testing.T) {
	m, _ := newTestManager(t, 0)
	if _, ok, err := m.GetResumeState(context.Background(), "never-started"); ok || err != nil {
		t.Fatalf("ok=%v err=%v, want no checkpoint and nil error", ok, err)
	}
}

func TestGenerationFileMovedBetweenRunsIsRejected(t *testing.T) {
	m, dir := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.RecordCompleted(ctx, "run-a", "acme"); err != nil {
		t.Fatal(err)
	}

	// Copy run-a's newest generation into run-b's directory.
	src := filepath.Join(dir, "run-a", generationName(1))
	b, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "run-b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run-b", generationName(1)), b, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := m.GetResumeState(ctx, "run-b"); ok {
		t.Error("a generation file from another run must not verify")
	}
}

func TestGenerationFileRenamedIsRejected(t *testing.T) {
	m, dir := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCompleted(ctx, "run-1", "globex"); err != nil {
		t.Fatal(err)
	}
	runDir := filepath.Join(dir, "run-1")
	// Promote generation 2 to 5 by renaming; the recorded generation number
	// no longer matches the filename.
	if err := os.Rename(filepath.Join(runDir, generationName(2)), filepath.Join(runDir, generationName(5))); err != nil {
		t.Fatal(err)
	}

	st, ok, err := m.GetResumeState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetResumeState: ok=%v err=%v", ok, err)
	}
	if st.Generation != 1 {
		t.Errorf("renamed generation should be skipped; resumed gen %d", st.Generation)
	}
}

func TestRetentionKeepsNewestGenerations(t *testing.T) {
	m, dir := newTestManager(t, 3)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := m.RecordCompleted(ctx, "run-1", fmt.Sprintf("unit-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("kept %d generation files, want 3", len(entries))
	}
	// The survivors are the newest three.
	for _, want := range []uint64{6, 7, 8} {
		if _, err := os.Stat(filepath.Join(dir, "run-1", generationName(want))); err != nil {
			t.Errorf("generation %d should have been retained: %v", want, err)
		}
	}
}

func TestBeginIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.Begin(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.Begin(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}

	st, ok, _ := m.GetResumeState(ctx, "run-1")
	if !ok || len(st.CompletedUnits) != 1 {
		t.Fatalf("second Begin must not reset progress: ok=%v %+v", ok, st)
	}
}

func TestFinishMarksRunCompleted(t *testing.T) {
	m, _ := newTestManager(t, 0)
	ctx := context.Background()

	if err := m.RecordCompleted(ctx, "run-1", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := m.Finish(ctx, "run-1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := m.Finish(ctx, "run-1"); err != nil {
		t.Fatalf("second Finish: %v", err)
	}

	st, ok, _ := m.GetResumeState(ctx, "run-1")
	if !ok || !st.Completed {
		t.Fatalf("finished run should resume as Completed: ok=%v %+v", ok, st)
	}
	if len(st.CompletedUnits) != 1 {
		t.Errorf("Finish must not drop units: %v", st.CompletedUnits)
	}
}

func TestConcurrentRecordCompleted(t *testing.T) {
	m, _ := newTestManager(t, 5)
	ctx := context.Background()

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				unit := fmt.Sprintf("w%d-u%d", w, i)
				if err := m.RecordCompleted(ctx, "run-1", unit); err != nil {
					t.Errorf("RecordCompleted(%s): %v", unit, err)
				}
			}
		}(w)
	}
	wg.Wait()

	st, ok, err := m.GetResumeState(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("GetResumeState: ok=%v err=%v", ok, err)
	}
	if len(st.CompletedUnits) != workers*perWorker {
		t.Fatalf("CompletedUnits = %d, want %d", len(st.CompletedUnits), workers*perWorker)
	}
}

func TestManagerValidation(t *testing.T) {
	if _, err := NewManager(Options{}); err == nil {
		t.Error("NewManager without Dir should fail")
	}
}
