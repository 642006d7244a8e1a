package task_test

import (
	"testing"

	"github.com/brickingsoft/couring/pkg/task"
	"github.com/brickingsoft/errors"
)

func TestSpawnEagerStart(t *testing.T) {
	events := make([]string, 0, 4)
	tk := task.Spawn(func(fr *task.Frame) (task.Void, error) {
		events = append(events, "started")
		if err := fr.Suspend(); err != nil {
			return task.Void{}, err
		}
		events = append(events, "resumed")
		return task.Void{}, nil
	})
	if len(events) != 1 || events[0] != "started" {
		t.Error("task did not run to its first suspension on spawn:", events)
	}
	if tk.Done() {
		t.Error("task completed before resume")
	}
	if done := tk.Resume(); !done {
		t.Error("task did not complete after resume")
	}
	if len(events) != 2 || events[1] != "resumed" {
		t.Error("unexpected event order:", events)
	}
}

func TestResumeAdvancesOneSuspension(t *testing.T) {
	steps := 0
	tk := task.Spawn(func(fr *task.Frame) (task.Void, error) {
		for i := 0; i < 3; i++ {
			if err := fr.Suspend(); err != nil {
				return task.Void{}, err
			}
			steps++
		}
		return task.Void{}, nil
	})
	for i := 1; i <= 3; i++ {
		tk.Resume()
		if steps != i {
			t.Error("expected", i, "steps, got", steps)
		}
	}
	if !tk.Done() {
		t.Error("task should be done after three resumes")
	}
}

func TestAwaitChainsContinuation(t *testing.T) {
	inner := task.Spawn(func(fr *task.Frame) (int, error) {
		if err := fr.Suspend(); err != nil {
			return 0, err
		}
		return 42, nil
	})
	outer := task.Spawn(func(fr *task.Frame) (int, error) {
		v, err := task.Await(fr, inner)
		return v + 1, err
	})
	if outer.Done() {
		t.Error("outer completed before inner")
	}
	inner.Resume()
	if !outer.Done() {
		t.Error("inner completion did not resume its awaiter")
	}
	v, err := task.SyncWait(outer)
	if err != nil {
		t.Error(err)
	}
	if v != 43 {
		t.Error("expected 43, got", v)
	}
}

func TestAwaitCompletedTask(t *testing.T) {
	done := task.Spawn(func(fr *task.Frame) (string, error) {
		return "ready", nil
	})
	if !done.Done() {
		t.Fatal("task without suspension should complete during spawn")
	}
	outer := task.Spawn(func(fr *task.Frame) (string, error) {
		return task.Await(fr, done)
	})
	v, err := task.SyncWait(outer)
	if err != nil {
		t.Error(err)
	}
	if v != "ready" {
		t.Error("expected ready, got", v)
	}
}

func TestCancelUnwinds(t *testing.T) {
	unwound := false
	tk := task.Spawn(func(fr *task.Frame) (task.Void, error) {
		err := fr.Suspend()
		if err != nil {
			unwound = true
		}
		return task.Void{}, err
	})
	tk.Cancel()
	if !unwound {
		t.Error("cancel did not unwind the suspension point")
	}
	if _, err := task.SyncWait(tk); !errors.Is(err, task.ErrCanceled) {
		t.Error("expected ErrCanceled, got", err)
	}
}

func TestOnFinalRunsAtCompletion(t *testing.T) {
	finals := 0
	tk := task.Spawn(func(fr *task.Frame) (task.Void, error) {
		return task.Void{}, fr.Suspend()
	})
	tk.OnFinal(func() {
		finals++
	})
	if finals != 0 {
		t.Error("finalizer ran before completion")
	}
	tk.Resume()
	if finals != 1 {
		t.Error("finalizer did not run exactly once:", finals)
	}
}

func TestStoredContinuationResumes(t *testing.T) {
	// The awaitable pattern: park the continuation in a descriptor slot,
	// suspend, and let a dispatcher invoke it later.
	var continuation func()
	tk := task.Spawn(func(fr *task.Frame) (int, error) {
		continuation = fr.Resumer()
		if err := fr.Suspend(); err != nil {
			return 0, err
		}
		return 7, nil
	})
	if continuation == nil {
		t.Fatal("continuation not stored before suspension")
	}
	continuation()
	v, err := task.SyncWait(tk)
	if err != nil {
		t.Error(err)
	}
	if v != 7 {
		t.Error("expected 7, got", v)
	}
}

func TestScheduleAndWaitAllOrder(t *testing.T) {
	tasks := make([]*task.Task[int], 0, 4)
	for i := 0; i < 4; i++ {
		i := i
		tasks = append(tasks, task.Spawn(func(fr *task.Frame) (int, error) {
			if err := task.Schedule(fr); err != nil {
				return 0, err
			}
			return i * 10, nil
		}))
	}
	results, err := task.WaitAll(tasks)
	if err != nil {
		t.Error(err)
	}
	for i, v := range results {
		if v != i*10 {
			t.Error("result", i, "out of order:", results)
			break
		}
	}
}
