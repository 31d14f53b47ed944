package swarm

import (
	"testing"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/stretchr/testify/assert"

	"github.com/moby/moby/api/types/swarm"
)

func task(state swarm.TaskState, index uint64) swarm.Task {
	t := swarm.Task{
		Status: swarm.TaskStatus{
			State:           state,
			ContainerStatus: &swarm.ContainerStatus{ContainerID: "c1"},
		},
	}
	t.Version.Index = index
	t.UpdatedAt = time.Unix(int64(index), 0)
	return t
}

func TestTaskStatusPhases(t *testing.T) {
	tests := []struct {
		state swarm.TaskState
		phase models.UnitPhase
	}{
		{swarm.TaskStateNew, models.UnitPhaseNotReady},
		{swarm.TaskStatePending, models.UnitPhaseNotReady},
		{swarm.TaskStatePreparing, models.UnitPhaseNotReady},
		{swarm.TaskStateStarting, models.UnitPhaseNotReady},
		{swarm.TaskStateRunning, models.UnitPhaseRunning},
		{swarm.TaskStateComplete, models.UnitPhaseExited},
		{swarm.TaskStateShutdown, models.UnitPhaseExited},
		{swarm.TaskStateFailed, models.UnitPhaseFailed},
		{swarm.TaskStateRejected, models.UnitPhaseFailed},
		{swarm.TaskStateOrphaned, models.UnitPhaseFailed},
		{swarm.TaskState("bogus"), models.UnitPhaseFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			tk := task(tt.state, 1)
			assert.Equal(t, tt.phase, taskStatus(&tk).Phase)
		})
	}
}

func TestTaskStatusErrWins(t *testing.T) {
	tk := task(swarm.TaskStateRunning, 1)
	tk.Status.Err = "No such image: nginx:404"

	status := taskStatus(&tk)
	assert.Equal(t, models.UnitPhaseFailed, status.Phase)
	assert.Equal(t, "No such image: nginx:404", status.Message)
}

func TestTaskStatusNoTask(t *testing.T) {
	assert.Equal(t, models.UnitPhaseNotReady, taskStatus(latestTask(nil)).Phase)
}

func TestLatestTask(t *testing.T) {
	old := task(swarm.TaskStateFailed, 3)
	cur := task(swarm.TaskStateRunning, 7)
	cur.Status.ContainerStatus.ContainerID = "c2"

	latest := latestTask([]swarm.Task{old, cur})
	assert.Equal(t, swarm.TaskStateRunning, latest.Status.State)
	assert.Equal(t, "c2", taskStatus(latest).ContainerID)
}
