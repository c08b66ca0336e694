// Package containers starts throwaway backends for integration tests
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func start(t *testing.T, req tc.ContainerRequest, port string) (host, mapped string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	p, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, p.Port()
}

// Postgres starts postgres:16-alpine and returns its URL
func Postgres(t *testing.T) string {
	host, port := start(t, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "poshub",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}, "5432/tcp")
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/poshub?sslmode=disable", host, port)
}

// Redis starts redis:7-alpine and returns its address
func Redis(t *testing.T) string {
	host, port := start(t, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
	}, "6379/tcp")
	return host + ":" + port
}
