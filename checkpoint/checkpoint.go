// Package checkpoint persists "units of work completed" per pipeline run, so
// a long batch job killed mid-flight resumes from the last completed unit
// instead of starting over. Each run keeps a bounded ring of generation
// files; every generation carries a digest over its own content, and resume
// walks generations newest-first until one verifies. A corrupt generation is
// never fatal - it degrades to the previous one, and ultimately to "no
// usable checkpoint".
//
// Layout, one directory per run under the checkpoint root:
//
//	<root>/<runID>/checkpoint_000001.json
//	<root>/<runID>/checkpoint_000002.json
//	...
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/reportkit/rescache"
	"github.com/reportkit/rescache/internal/fsatomic"
)

// DefaultRetention is how many generations each run keeps when Options
// leaves Retention zero.
const DefaultRetention = 3

var generationFilePattern = regexp.MustCompile(`^checkpoint_(\d{6,})\.json$`)

// Options configure a Manager. Dir is required.
type Options struct {
	// Dir is the checkpoint root; per-run directories are created below it.
	Dir string
	// Retention bounds generations kept per run. 0 => DefaultRetention.
	Retention int
	Logger    rescache.Logger
	Hooks     rescache.Hooks
}

// ResumeState is a verified snapshot of a run's progress.
type ResumeState struct {
	RunID          string
	Generation     uint64
	CompletedUnits []string // sorted
	// Completed reports whether Finish was called for the run.
	Completed bool
}

// Remaining filters units down to those not yet completed, preserving the
// caller's order - the unit list a resumed pipeline should still process.
func (s ResumeState) Remaining(units []string) []string {
	done := make(map[string]struct{}, len(s.CompletedUnits))
	for _, u := range s.CompletedUnits {
		done[u] = struct{}{}
	}
	out := make([]string, 0, len(units))
	for _, u := range units {
		if _, ok := done[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

// generationFile is the serialized shape of one checkpoint generation.
type generationFile struct {
	RunID          string   `json:"run_id"`
	Generation     uint64   `json:"generation"`
	CompletedUnits []string `json:"completed_units"`
	Completed      bool     `json:"completed"`
	Digest         string   `json:"digest"`
}

// digestOf covers the run identity and the generation number as well as the
// unit set, so a generation file copied between runs or renamed to a
// different generation fails verification.
func digestOf(runID string, generation uint64, completed bool, sortedUnits []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%t\n", runID, generation, completed)
	for _, u := range sortedUnits {
		h.Write([]byte(u))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type runState struct {
	generation uint64
	units      map[string]struct{}
	completed  bool
}

// Manager records and recovers per-run progress. Safe for concurrent use;
// RecordCompleted from many workers serializes on an internal mutex.
type Manager struct {
	dir       string
	retention int
	log       rescache.Logger
	hooks     rescache.Hooks

	mu   sync.Mutex
	runs map[string]*runState
}

// NewManager creates the checkpoint root if needed. Like the cache, an
// uncreatable directory is the one fatal configuration error.
func NewManager(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("checkpoint: Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir %s: %w", opts.Dir, err)
	}
	m := &Manager{
		dir:       opts.Dir,
		retention: opts.Retention,
		log:       opts.Logger,
		hooks:     opts.Hooks,
		runs:      make(map[string]*runState),
	}
	if m.retention <= 0 {
		m.retention = DefaultRetention
	}
	if m.log == nil {
		m.log = rescache.NopLogger{}
	}
	if m.hooks == nil {
		m.hooks = rescache.NopHooks{}
	}
	return m, nil
}

// Begin marks a run as started by writing its first (empty) generation.
// Idempotent: a run that already has state on disk or in memory is resumed,
// not reset.
func (m *Manager) Begin(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st, fresh, err := m.stateLocked(runID)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	st.generation = 1
	return m.writeLocked(runID, st)
}

// RecordCompleted appends unitID to the run's completed set and persists a
// new generation. Called after each unit of work finishes, independent of
// cache hits or misses. Unknown runs are begun (or resumed from disk)
// implicitly.
func (m *Manager) RecordCompleted(ctx context.Context, runID, unitID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st, _, err := m.stateLocked(runID)
	if err != nil {
		return err
	}
	st.units[unitID] = struct{}{}
	st.generation++
	return m.writeLocked(runID, st)
}

// Finish marks the run Completed in a final generation. Resume states for a
// finished run report Completed=true so the pipeline can skip it entirely.
func (m *Manager) Finish(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st, _, err := m.stateLocked(runID)
	if err != nil {
		return err
	}
	if st.completed {
		return nil
	}
	st.completed = true
	st.generation++
	return m.writeLocked(runID, st)
}

// GetResumeState loads the newest generation whose digest and run identity
// verify, falling back generation by generation. ok=false means no usable
// checkpoint exists and the caller should run from scratch; corruption never
// produces an error here.
func (m *Manager) GetResumeState(ctx context.Context, runID string) (ResumeState, bool, error) {
	if err := ctx.Err(); err != nil {
		return ResumeState{}, false, err
	}
	gens, err := m.listGenerations(runID)
	if err != nil || len(gens) == 0 {
		return ResumeState{}, false, nil
	}

	for _, gen := range gens { // newest first
		gf, reason := m.readGeneration(runID, gen)
		if reason != "" {
			m.hooks.CheckpointGenerationSkipped(runID, gen, reason)
			m.log.Warn("checkpoint generation skipped", rescache.Fields{
				"run":        runID,
				"generation": gen,
				"reason":     reason,
			})
			continue
		}
		m.log.Info("checkpoint loaded", rescache.Fields{
			"run":        runID,
			"generation": gf.Generation,
			"completed":  len(gf.CompletedUnits),
		})
		return ResumeState{
			RunID:          gf.RunID,
			Generation:     gf.Generation,
			CompletedUnits: gf.CompletedUnits,
			Completed:      gf.Completed,
		}, true, nil
	}

	m.log.Warn("no valid checkpoint for run", rescache.Fields{"run": runID})
	return ResumeState{}, false, nil
}

// stateLocked returns the in-memory state for a run, seeding it from the
// newest valid on-disk generation the first time the run is touched.
// fresh is true when neither memory nor disk had any state.
func (m *Manager) stateLocked(runID string) (st *runState, fresh bool, err error) {
	if st, ok := m.runs[runID]; ok {
		return st, false, nil
	}
	st = &runState{units: make(map[string]struct{})}

	gens, lerr := m.listGenerations(runID)
	if lerr == nil {
		for _, gen := range gens {
			gf, reason := m.readGeneration(runID, gen)
			if reason != "" {
				m.hooks.CheckpointGenerationSkipped(runID, gen, reason)
				continue
			}
			st.generation = gf.Generation
			st.completed = gf.Completed
			for _, u := range gf.CompletedUnits {
				st.units[u] = struct{}{}
			}
			break
		}
	}

	m.runs[runID] = st
	return st, st.generation == 0, nil
}

// writeLocked persists the current state as generation file st.generation
// and retires generations beyond the retention ring.
func (m *Manager) writeLocked(runID string, st *runState) error {
	units := make([]string, 0, len(st.units))
	for u := range st.units {
		units = append(units, u)
	}
	sort.Strings(units)

	gf := generationFile{
		RunID:          runID,
		Generation:     st.generation,
		CompletedUnits: units,
		Completed:      st.completed,
		Digest:         digestOf(runID, st.generation, st.completed, units),
	}
	b, err := json.Marshal(gf)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s gen %d: %w", runID, st.generation, err)
	}

	runDir := filepath.Join(m.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create run dir: %w", err)
	}
	path := filepath.Join(runDir, generationName(st.generation))
	if err := fsatomic.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	m.pruneLocked(runID)
	return nil
}

// pruneLocked deletes generations beyond the newest retention-many.
// Best-effort: a file that cannot be removed today is removed next time.
func (m *Manager) pruneLocked(runID string) {
	gens, err := m.listGenerations(runID)
	if err != nil || len(gens) <= m.retention {
		return
	}
	for _, gen := range gens[m.retention:] {
		path := filepath.Join(m.dir, runID, generationName(gen))
		if err := os.Remove(path); err != nil {
			m.log.Warn("checkpoint prune failed", rescache.Fields{
				"run":        runID,
				"generation": gen,
				"err":        err,
			})
			continue
		}
		m.log.Debug("retired checkpoint generation", rescache.Fields{
			"run":        runID,
			"generation": gen,
		})
	}
}

// listGenerations returns the run's generation numbers sorted descending
// (newest first). A missing run directory is simply an empty list.
func (m *Manager) listGenerations(runID string) ([]uint64, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	gens := make([]uint64, 0, len(entries))
	for _, de := range entries {
		mch := generationFilePattern.FindStringSubmatch(de.Name())
		if mch == nil {
			continue
		}
		n, perr := strconv.ParseUint(mch[1], 10, 64)
		if perr != nil {
			continue
		}
		gens = append(gens, n)
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] > gens[j] })
	return gens, nil
}

// readGeneration parses and verifies one generation file. A non-empty reason
// means the file is unusable: "unreadable", "unparsable", "digest_mismatch",
// "run_mismatch" or "generation_mismatch".
func (m *Manager) readGeneration(runID string, gen uint64) (generationFile, string) {
	path := filepath.Join(m.dir, runID, generationName(gen))
	b, err := os.ReadFile(path)
	if err != nil {
		return generationFile{}, "unreadable"
	}
	var gf generationFile
	if err := json.Unmarshal(b, &gf); err != nil {
		return generationFile{}, "unparsable"
	}
	if gf.RunID != runID {
		return generationFile{}, "run_mismatch"
	}
	if gf.Generation != gen {
		return generationFile{}, "generation_mismatch"
	}
	units := append([]string(nil), gf.CompletedUnits...)
	sort.Strings(units)
	if digestOf(gf.RunID, gf.Generation, gf.Completed, units) != gf.Digest {
		return generationFile{}, "digest_mismatch"
	}
	gf.CompletedUnits = units
	return gf, ""
}

func generationName(gen uint64) string {
	return fmt.Sprintf("checkpoint_%06d.json", gen)
}
