package engine

import (
	"fmt"

	"github.com/roach88/nodecheck/internal/job"
)

// watch adds e to the listener index under docID, registering a document
// listener when e is the first job watching that document.
func (m *Manager) watch(e *entry, docID string) error {
	m.imu.Lock()
	defer m.imu.Unlock()

	rec := e.record.Load()
	if rec.Status.State == job.StateCanceled {
		return ErrCanceled
	}

	jobs, ok := m.index[docID]
	if !ok {
		if err := m.doc.AddListener(docID, m.onDocumentChanged); err != nil {
			return fmt.Errorf("add listener for %q: %w", docID, err)
		}
		jobs = make(map[job.ID]struct{})
		m.index[docID] = jobs
		m.logger.Debug("watching document", "document", docID)
	}
	jobs[rec.ID] = struct{}{}
	e.docID = docID
	return nil
}

// unwatch removes e from the listener index, unregistering the document
// listener when no job watches the document any more. It is idempotent.
func (m *Manager) unwatch(e *entry) {
	m.imu.Lock()
	defer m.imu.Unlock()

	if e.docID == "" {
		return
	}
	docID := e.docID
	e.docID = ""

	jobs := m.index[docID]
	delete(jobs, e.record.Load().ID)
	if len(jobs) == 0 {
		delete(m.index, docID)
		m.doc.RemoveListener(docID)
		m.logger.Debug("stopped watching document", "document", docID)
	}
}

// onDocumentChanged is the listener registered with the document backend.
// It only enqueues triggers and returns immediately.
func (m *Manager) onDocumentChanged(docID string) {
	m.imu.Lock()
	defer m.imu.Unlock()

	for id := range m.index[docID] {
		v, ok := m.jobs.Load(id)
		if !ok {
			continue
		}
		m.put(v.(*entry), ReasonDocumentChanged)
	}
}

// Watched returns the number of jobs watching docID.
func (m *Manager) Watched(docID string) int {
	m.imu.Lock()
	defer m.imu.Unlock()
	return len(m.index[docID])
}
