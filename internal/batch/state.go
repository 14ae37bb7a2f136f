package batch

import (
	"errors"
	"sync"

	"github.com/taxtrack/itax-automation/internal/models"
)

// ErrRunActive means a batch is already in flight. Only one run exists
// at a time; the caller waits or stops the current one.
var ErrRunActive = errors.New("a batch run is already active")

// runState tracks the single in-flight run. All access goes through the
// mutex; the orchestrator goroutine and the control surface read and
// write it concurrently.
type runState struct {
	mu sync.Mutex

	running       bool
	stopRequested bool
	runID         string
	taskName      string
	processed     int
	total         int
	current       string
}

// begin claims the run slot.
func (s *runState) begin(runID, taskName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunActive
	}
	s.running = true
	s.stopRequested = false
	s.runID = runID
	s.taskName = taskName
	s.processed = 0
	s.total = 0
	s.current = ""
	return nil
}

func (s *runState) setTotal(total int) {
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
}

// advance marks one company as the current work item.
func (s *runState) advance(companyName string) {
	s.mu.Lock()
	s.current = companyName
	s.mu.Unlock()
}

// done counts one finished company.
func (s *runState) done() {
	s.mu.Lock()
	s.processed++
	s.current = ""
	s.mu.Unlock()
}

// requestStop flags the run to halt at the next company boundary.
// Returns false when nothing is running.
func (s *runState) requestStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.stopRequested = true
	return true
}

func (s *runState) stopWanted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

// finish releases the run slot, keeping the counters for the last
// progress snapshot.
func (s *runState) finish() {
	s.mu.Lock()
	s.running = false
	s.stopRequested = false
	s.current = ""
	s.mu.Unlock()
}

// snapshot returns the current progress view.
func (s *runState) snapshot() models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.ProgressSnapshot{
		RunID:          s.runID,
		TaskName:       s.taskName,
		Processed:      s.processed,
		Total:          s.total,
		Running:        s.running,
		CurrentCompany: s.current,
	}
}
