package reconcile

import (
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

// Recorder receives reconcile measurements. *metrics.Metrics implements it.
type Recorder interface {
	RecordReconcile(service, outcome string, d time.Duration)
	RecordPollAttempt(service string)
	RecordNamedObjectOp(kind models.ObjectKind, operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordReconcile(string, string, time.Duration) {}
func (nopRecorder) RecordPollAttempt(string) {}
func (nopRecorder) RecordNamedObjectOp(models.ObjectKind, string) {}
