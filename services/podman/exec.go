package podman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

type execCreate struct {
	AttachStdout bool     `json:"AttachStdout"`
	AttachStderr bool     `json:"AttachStderr"`
	Cmd          []string `json:"Cmd"`
}

type execStart struct {
	Detach bool `json:"Detach"`
	Tty    bool `json:"Tty"`
}

type execInspect struct {
	ExitCode int  `json:"ExitCode"`
	Running  bool `json:"Running"`
}

func (b *Backend) ExecInUnit(ctx context.Context, containerID string, cmd []string) (models.ExecResult, error) {
	var created idResponse
	req := execCreate{AttachStdout: true, AttachStderr: true, Cmd: cmd}
	if err := b.api.do(ctx, http.MethodPost, "/libpod/containers/"+url.PathEscape(containerID)+"/exec", nil, req, &created); err != nil {
		return models.ExecResult{}, fmt.Errorf("create exec in %q: %w", containerID, err)
	}

	body, err := json.Marshal(execStart{})
	if err != nil {
		return models.ExecResult{}, err
	}
	resp, err := b.api.send(ctx, b.api.stream, http.MethodPost, "/libpod/exec/"+created.ID+"/start", nil, bytes.NewReader(body))
	if err != nil {
		return models.ExecResult{}, fmt.Errorf("start exec in %q: %w", containerID, err)
	}
	defer resp.Body.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Body); err != nil {
		return models.ExecResult{}, fmt.Errorf("read exec output: %w", err)
	}

	var inspect execInspect
	if err := b.api.do(ctx, http.MethodGet, "/libpod/exec/"+created.ID+"/json", nil, nil, &inspect); err != nil {
		return models.ExecResult{}, fmt.Errorf("inspect exec in %q: %w", containerID, err)
	}

	return models.ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
