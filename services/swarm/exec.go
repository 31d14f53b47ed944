package swarm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"

	"github.com/moby/moby/client"
)

// ExecInUnit runs cmd in the unit's container and waits for it to finish.
func (b *Backend) ExecInUnit(ctx context.Context, containerID string, cmd []string) (models.ExecResult, error) {
	var result models.ExecResult

	created, err := b.client.ExecCreate(ctx, containerID, client.ExecCreateOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return result, fmt.Errorf("create exec in %s: %w", containerID, err)
	}

	attached, err := b.client.ExecAttach(ctx, created.ID, client.ExecAttachOptions{})
	if err != nil {
		return result, fmt.Errorf("attach exec %s: %w", created.ID, err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return result, fmt.Errorf("read exec output: %w", err)
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	inspected, err := b.client.ExecInspect(ctx, created.ID, client.ExecInspectOptions{})
	if err != nil {
		return result, fmt.Errorf("inspect exec %s: %w", created.ID, err)
	}
	result.ExitCode = inspected.ExitCode
	return result, nil
}
