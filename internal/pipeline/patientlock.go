package pipeline

import "sync"

// patientLocks serializes the synthesis stage per patient. Locks are created
// lazily and kept for the life of the runner; the per-patient footprint is a
// single mutex.
type patientLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPatientLocks() *patientLocks {
	return &patientLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the patient's mutex and returns its unlock function.
func (p *patientLocks) lock(patientID string) func() {
	p.mu.Lock()
	m, ok := p.locks[patientID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[patientID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
