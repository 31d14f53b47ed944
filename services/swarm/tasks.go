package swarm

import (
	"sort"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"

	"github.com/moby/moby/api/types/swarm"
)

// Task states in lifecycle order.
var taskStateRank = map[swarm.TaskState]int{
	swarm.TaskStateNew:       0,
	swarm.TaskStateAllocated: 1,
	swarm.TaskStatePending:   2,
	swarm.TaskStateAssigned:  3,
	swarm.TaskStateAccepted:  4,
	swarm.TaskStatePreparing: 5,
	swarm.TaskStateReady:     6,
	swarm.TaskStateStarting:  7,
	swarm.TaskStateRunning:   8,
	swarm.TaskStateComplete:  9,
	swarm.TaskStateShutdown:  10,
	swarm.TaskStateFailed:    11,
	swarm.TaskStateRejected:  12,
	swarm.TaskStateRemove:    13,
	swarm.TaskStateOrphaned:  14,
}

// latestTask returns the most recently updated task, or nil.
func latestTask(tasks []swarm.Task) *swarm.Task {
	if len(tasks) == 0 {
		return nil
	}
	sorted := append([]swarm.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Version.Index != sorted[j].Version.Index {
			return sorted[i].Version.Index > sorted[j].Version.Index
		}
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	return &sorted[0]
}

// taskStatus classifies a task. A reported error always means failed; past
// that a task at or beyond running is up, and complete or shut down counts as
// having run to completion.
func taskStatus(task *swarm.Task) models.UnitStatus {
	if task == nil {
		return models.UnitStatus{Phase: models.UnitPhaseNotReady, State: "no-task"}
	}

	status := models.UnitStatus{
		State:   string(task.Status.State),
		Message: task.Status.Message,
	}
	if task.Status.ContainerStatus != nil {
		status.ContainerID = task.Status.ContainerStatus.ContainerID
	}

	if task.Status.Err != "" {
		status.Phase = models.UnitPhaseFailed
		status.Message = task.Status.Err
		return status
	}

	rank, known := taskStateRank[task.Status.State]
	switch {
	case !known:
		status.Phase = models.UnitPhaseFailed
	case rank < taskStateRank[swarm.TaskStateRunning]:
		status.Phase = models.UnitPhaseNotReady
	case task.Status.State == swarm.TaskStateRunning:
		status.Phase = models.UnitPhaseRunning
	case task.Status.State == swarm.TaskStateComplete, task.Status.State == swarm.TaskStateShutdown:
		status.Phase = models.UnitPhaseExited
	default:
		status.Phase = models.UnitPhaseFailed
	}
	return status
}
