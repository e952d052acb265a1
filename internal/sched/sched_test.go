package sched

import (
	"testing"

	"github.com/shivanshudwivedi/Microkernel/internal/defs"
	"github.com/shivanshudwivedi/Microkernel/internal/task"
)

// fakeMachine stands in for the real hardware mechanism: Switch and
// WaitForInterrupt just count their calls and WriteCR3 does nothing,
// rather than touching real CPU state, so these tests exercise the scheduler's ready-queue and
// state-machine policy without requiring a freestanding target.
func fakeMachine() (Machine, *int, *int) {
	switches, waits := 0, 0
	return Machine{
		Switch:           func(oldrsp *uint64, newrsp uint64) { switches++ },
		WriteCR3:         func(root uint64) {},
		WaitForInterrupt: func() { waits++ },
	}, &switches, &waits
}

func newTestScheduler(t *testing.T) (*Scheduler, *task.Table) {
	t.Helper()
	tasks := task.NewTable()
	m, _, _ := fakeMachine()
	return NewWithMachine(tasks, 0x3000, m), tasks
}

func TestCreateTaskEnqueuesReady(t *testing.T) {
	s, tasks := newTestScheduler(t)
	pid, err := s.CreateTask("t1", 0x400000, 0, 0x600000)
	if err != defs.OK {
		t.Fatalf("CreateTask() err = %v, want OK", err)
	}
	if pid == 0 {
		t.Fatalf("CreateTask() pid = 0, want nonzero")
	}
	if s.ReadyLen() != 1 {
		t.Fatalf("ReadyLen() = %d, want 1", s.ReadyLen())
	}
	slot := tasks.FindByPid(pid)
	if tasks.Get(slot).State != task.Ready {
		t.Fatalf("new task State = %v, want Ready", tasks.Get(slot).State)
	}
}

func TestCreateTaskNoSlotWhenTableFull(t *testing.T) {
	s, _ := newTestScheduler(t)
	for i := 0; i < defs.MaxTasks; i++ {
		if _, err := s.CreateTask("t", 0x400000, 0, 0x600000); err != defs.OK {
			t.Fatalf("CreateTask() %d err = %v, want OK", i, err)
		}
	}
	if _, err := s.CreateTask("overflow", 0x400000, 0, 0x600000); err != defs.NoSlot {
		t.Fatalf("CreateTask() on full table err = %v, want NoSlot", err)
	}
}

func TestRoundRobinFairnessOverEightTicks(t *testing.T) {
	s, tasks := newTestScheduler(t)
	var pids []defs.Pid_t
	for i := 0; i < defs.MaxTasks; i++ {
		pid, err := s.CreateTask("t", 0x400000, 0, 0x600000)
		if err != defs.OK {
			t.Fatalf("CreateTask() %d err = %v", i, err)
		}
		pids = append(pids, pid)
	}

	for tick := 0; tick < defs.MaxTasks; tick++ {
		s.Yield()
		cur := s.Current()
		if cur == nil {
			t.Fatalf("tick %d: Current() = nil, want a running task", tick)
		}
		if cur.Pid != pids[tick] {
			t.Fatalf("tick %d: Current().Pid = %d, want %d (insertion order)", tick, cur.Pid, pids[tick])
		}
	}

	// every task ran exactly once; the ready queue holds the other
	// MaxTasks-1 tasks (the current one is Running, not enqueued).
	if s.ReadyLen() != defs.MaxTasks-1 {
		t.Fatalf("ReadyLen() after %d ticks = %d, want %d", defs.MaxTasks, s.ReadyLen(), defs.MaxTasks-1)
	}
	_ = tasks
}

func TestYieldDemotesOutgoingToReadyAndReenqueues(t *testing.T) {
	s, tasks := newTestScheduler(t)
	pidA, _ := s.CreateTask("a", 0x400000, 0, 0x600000)
	pidB, _ := s.CreateTask("b", 0x400000, 0, 0x600000)

	s.Yield() // dispatches a
	if s.Current().Pid != pidA {
		t.Fatalf("Current().Pid = %d, want %d", s.Current().Pid, pidA)
	}
	s.Yield() // a -> Ready at tail, dispatches b
	if s.Current().Pid != pidB {
		t.Fatalf("Current().Pid = %d, want %d", s.Current().Pid, pidB)
	}
	slotA := tasks.FindByPid(pidA)
	if tasks.Get(slotA).State != task.Ready {
		t.Fatalf("outgoing task a State = %v, want Ready", tasks.Get(slotA).State)
	}
}

func TestCurrentContinuesWhenReadyQueueEmpty(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.CreateTask("solo", 0x400000, 0, 0x600000)
	s.Yield()
	solo := s.Current()

	s.Yield() // ready queue is empty; solo is still Running -> it continues
	if s.Current() != solo {
		t.Fatalf("Current() changed identity across Yield() with empty ready queue")
	}
	if solo.State != task.Running {
		t.Fatalf("solo.State = %v, want Running", solo.State)
	}
}

func TestIdleWhenNoTasksRunnable(t *testing.T) {
	s, _ := newTestScheduler(t)
	m, _, waits := fakeMachine()
	s.machine = m

	s.Yield() // nothing created; ready queue empty, current == -1
	if s.Current() != nil {
		t.Fatalf("Current() = %v, want nil when idle", s.Current())
	}
	if *waits != 1 {
		t.Fatalf("WaitForInterrupt calls = %d, want 1", *waits)
	}
}

func TestExitFreesSlotAndDispatchesNext(t *testing.T) {
	s, tasks := newTestScheduler(t)
	pidA, _ := s.CreateTask("a", 0x400000, 0, 0x600000)
	pidB, _ := s.CreateTask("b", 0x400000, 0, 0x600000)

	s.Yield() // dispatch a
	// FindByPid skips Zombie slots, so resolve a's slot before it exits.
	slotA := tasks.FindByPid(pidA)
	if err := s.Exit(0); err != defs.OK {
		t.Fatalf("Exit() err = %v, want OK", err)
	}
	if tasks.Get(slotA).State != task.Zombie {
		t.Fatalf("exited task State = %v, want Zombie", tasks.Get(slotA).State)
	}
	if s.Current().Pid != pidB {
		t.Fatalf("Current().Pid after Exit = %d, want %d", s.Current().Pid, pidB)
	}
}

func TestExitWithNoCurrentTaskReturnsError(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.Exit(0); err != defs.NoCurrentTask {
		t.Fatalf("Exit() with no current task err = %v, want NoCurrentTask", err)
	}
}

func TestBlockCurrentThenUnblockReturnsToReady(t *testing.T) {
	s, tasks := newTestScheduler(t)
	pidA, _ := s.CreateTask("a", 0x400000, 0, 0x600000)
	pidB, _ := s.CreateTask("b", 0x400000, 0, 0x600000)

	s.Yield() // dispatch a
	slotA := tasks.FindByPid(pidA)
	if err := s.BlockCurrent(); err != defs.OK {
		t.Fatalf("BlockCurrent() err = %v, want OK", err)
	}
	if tasks.Get(slotA).State != task.Blocked {
		t.Fatalf("blocked task State = %v, want Blocked", tasks.Get(slotA).State)
	}
	if s.Current().Pid != pidB {
		t.Fatalf("Current().Pid after BlockCurrent = %d, want %d", s.Current().Pid, pidB)
	}

	s.Unblock(slotA)
	if tasks.Get(slotA).State != task.Ready {
		t.Fatalf("unblocked task State = %v, want Ready", tasks.Get(slotA).State)
	}
	if s.ReadyLen() != 1 {
		t.Fatalf("ReadyLen() after Unblock = %d, want 1", s.ReadyLen())
	}
}

func TestUnblockOfNonBlockedTaskPanics(t *testing.T) {
	s, tasks := newTestScheduler(t)
	pid, _ := s.CreateTask("a", 0x400000, 0, 0x600000)
	slot := tasks.FindByPid(pid)

	defer func() {
		if recover() == nil {
			t.Fatalf("Unblock() of a Ready task did not panic")
		}
	}()
	s.Unblock(slot)
}
