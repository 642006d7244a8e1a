package task

// SyncWait parks the calling goroutine until t reaches its final completion,
// then returns its result. The completion flag is the only synchronisation
// between the task's thread and the waiter.
func SyncWait[R any](t *Task[R]) (R, error) {
	<-t.c.flag
	return t.result, t.err
}

// WaitAll applies SyncWait to each task in order and collects the results in
// input order. The first error encountered is returned alongside whatever
// results were collected; remaining tasks are still waited on.
func WaitAll[R any](tasks []*Task[R]) ([]R, error) {
	results := make([]R, 0, len(tasks))
	var first error
	for _, t := range tasks {
		r, err := SyncWait(t)
		if err != nil && first == nil {
			first = err
		}
		results = append(results, r)
	}
	return results, first
}
