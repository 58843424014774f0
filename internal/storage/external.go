package storage

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// ExternalBackend describes the contract for a cluster-backed storage
// driver (the original StorageType.KUBERNETES variant, which persisted
// handoffs/sessions/insights as CRDs against the Kubernetes API server).
// K8s CRD serialization itself is a Non-goal of this module, but the
// shape of "a remote, context-scoped, typed client talking to an
// external control plane" is still worth describing precisely, so this
// stub borrows the Docker client's construction pattern (environment-
// driven connection, API version negotiation, context on every call)
// rather than inventing one. It never opens a real connection or issues
// real calls; every method returns ErrExternalBackendUnconfigured until
// a real transport is wired in by an operator.
type ExternalBackend struct {
	endpoint string
	cli      *client.Client
}

// NewExternalBackend resolves a client against endpoint the same way
// client.NewClientWithOpts(client.FromEnv, ...) resolves DOCKER_HOST: a
// lazily-dialed handle, not an eagerly-verified connection.
func NewExternalBackend(endpoint string) (*ExternalBackend, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost(endpoint),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: constructing external backend client: %w", err)
	}
	return &ExternalBackend{endpoint: endpoint, cli: cli}, nil
}

var errExternalBackendUnconfigured = fmt.Errorf("storage: external (cluster) backend is a contract stub; no calls are dispatched")

func (e *ExternalBackend) SaveHandoff(ctx context.Context, projectID string, h Handoff) error {
	return errExternalBackendUnconfigured
}

func (e *ExternalBackend) GetHandoff(ctx context.Context, projectID, handoffID string) (Handoff, bool, error) {
	return Handoff{}, false, errExternalBackendUnconfigured
}

func (e *ExternalBackend) Close() error {
	if e.cli == nil {
		return nil
	}
	return e.cli.Close()
}
