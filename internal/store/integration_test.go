//go:build integration

package store

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	config "example.com/chirp/internal/init"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// startContainer runs req and returns host:port of its first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, nat.Port(req.ExposedPorts[0]), "")
	require.NoError(t, err)
	return endpoint
}

func TestMongoStoreIntegration(t *testing.T) {
	skipIfNoDocker(t)

	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		).WithStartupTimeout(2 * time.Minute),
	})

	var n atomic.Int32
	runConformance(t, func(t *testing.T) StoreInterface {
		cfg := &config.Config{
			MongoURI:      "mongodb://" + endpoint,
			MongoDatabase: fmt.Sprintf("chirp_test_%d", n.Add(1)),
			MongoTimeout:  10 * time.Second,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := NewMongo(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(st.Close)
		return st
	})
}

func TestCassandraStoreIntegration(t *testing.T) {
	skipIfNoDocker(t)

	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "cassandra:4.1",
		ExposedPorts: []string{"9042/tcp"},
		Env: map[string]string{
			"MAX_HEAP_SIZE": "512M",
			"HEAP_NEWSIZE":  "128M",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("9042/tcp"),
			wait.ForLog("Starting listening for CQL clients"),
		).WithStartupTimeout(4 * time.Minute),
	})

	var n atomic.Int32
	runConformance(t, func(t *testing.T) StoreInterface {
		cfg := &config.Config{
			CassandraHost:     endpoint,
			CassandraKeyspace: fmt.Sprintf("chirp_test_%d", n.Add(1)),
			CassandraTimeout:  20 * time.Second,
		}
		st, err := NewCassandra(cfg)
		require.NoError(t, err)
		t.Cleanup(st.Close)
		return st
	})
}
