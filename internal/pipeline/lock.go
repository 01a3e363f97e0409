package pipeline

import "sync"

// entityLocks is an in-memory keyed mutex guaranteeing at most one in-flight
// run per entity id within this process. Each held lock remembers the task
// id of its run so a rejected caller can observe the in-progress work.
type entityLocks struct {
	mu       sync.Mutex
	inFlight map[string]string // entity id -> task id
}

func newEntityLocks() *entityLocks {
	return &entityLocks{inFlight: make(map[string]string)}
}

// tryAcquire claims the entity for taskID. On conflict it returns false and
// the task id of the run already holding the lock.
func (l *entityLocks) tryAcquire(entityID, taskID string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.inFlight[entityID]; ok {
		return false, existing
	}
	l.inFlight[entityID] = taskID
	return true, ""
}

// setTask records the task id for a lock already held on the entity.
func (l *entityLocks) setTask(entityID, taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inFlight[entityID]; ok {
		l.inFlight[entityID] = taskID
	}
}

// holder returns the task id currently holding the entity, if any.
func (l *entityLocks) holder(entityID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	taskID, ok := l.inFlight[entityID]
	return taskID, ok
}

func (l *entityLocks) release(entityID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, entityID)
}
