package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const portalImage = "alpha-matrix:test"

var (
	portalBuildOnce  sync.Once
	portalBuildError error
)

// PortalContainer wraps a testcontainers environment: redis + portal, with
// the portal pointed at a quant backend running on the host.
type PortalContainer struct {
	portal  testcontainers.Container
	redis   testcontainers.Container
	network *testcontainers.DockerNetwork
	url     string
}

// URL returns the base URL of the running portal container.
func (p *PortalContainer) URL() string {
	return p.url
}

// CollectLogs saves container stdout/stderr to dir/.
func (p *PortalContainer) CollectLogs(dir string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	os.MkdirAll(dir, 0755)

	collect := func(c testcontainers.Container, name string) {
		if c == nil {
			return
		}
		reader, err := c.Logs(ctx)
		if err != nil {
			return
		}
		defer reader.Close()

		logs, err := io.ReadAll(reader)
		if err != nil {
			return
		}
		os.WriteFile(filepath.Join(dir, name+".log"), logs, 0644)
	}

	collect(p.portal, "portal")
	collect(p.redis, "redis")
}

// Cleanup tears down all containers and the network.
// Uses a fresh context for teardown in case the main context expired.
func (p *PortalContainer) Cleanup() {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if p.portal != nil {
		p.portal.Terminate(ctx)
	}
	if p.redis != nil {
		p.redis.Terminate(ctx)
	}
	if p.network != nil {
		p.network.Remove(ctx)
	}
}

// buildPortalImage builds the alpha-matrix:test Docker image once per test run.
func buildPortalImage() error {
	portalBuildOnce.Do(func() {
		req := testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				FromDockerfile: testcontainers.FromDockerfile{
					Context:    FindProjectRoot(),
					Dockerfile: "tests/docker/Dockerfile.portal",
					Repo:       "alpha-matrix",
					Tag:        "test",
					KeepImage:  true,
				},
			},
		}

		_, portalBuildError = testcontainers.GenericContainer(context.Background(), req)
		if portalBuildError != nil {
			// Image may have built successfully even if container creation failed
			if strings.Contains(portalBuildError.Error(), portalImage) {
				portalBuildError = nil
			}
		}
	})
	return portalBuildError
}

// StartPortalContainer builds the portal image and starts redis plus the
// portal on a shared network. backendPort is a host port serving the quant
// backend under /api. Skips when Docker is unavailable or in -short mode.
func StartPortalContainer(t *testing.T, backendPort int, password string) *PortalContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	if err := buildPortalImage(); err != nil {
		t.Fatalf("build portal image: %v", err)
	}

	pc, err := startEnvironment(backendPort, password)
	if err != nil {
		pc.Cleanup()
		t.Fatalf("start portal environment: %v", err)
	}
	t.Cleanup(func() {
		if t.Failed() {
			pc.CollectLogs(filepath.Join(GetResultsDir(), "containers"))
		}
		pc.Cleanup()
	})
	return pc
}

// startEnvironment returns whatever it managed to start, even on error, so
// the caller can clean it up.
func startEnvironment(backendPort int, password string) (*PortalContainer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	pc := &PortalContainer{}

	testNet, err := network.New(ctx)
	if err != nil {
		return pc, fmt.Errorf("create docker network: %w", err)
	}
	pc.network = testNet

	pc.redis, err = testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		network.WithNetwork([]string{"redis"}, testNet),
		testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
	)
	if err != nil {
		return pc, fmt.Errorf("start redis: %w", err)
	}

	// Container IP rather than DNS alias: the portal image is built with CGO_ENABLED=0.
	redisIP, err := pc.redis.ContainerIP(ctx)
	if err != nil {
		return pc, fmt.Errorf("get redis IP: %w", err)
	}

	pc.portal, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:           portalImage,
			ExposedPorts:    []string{"4251/tcp"},
			HostAccessPorts: []int{backendPort},
			Networks:        []string{testNet.Name},
			Env: map[string]string{
				"ALPHA_SERVER_HOST":     "0.0.0.0",
				"ALPHA_SERVER_PORT":     "4251",
				"ALPHA_API_URL":         fmt.Sprintf("http://%s:%d/api", testcontainers.HostInternal, backendPort),
				"ALPHA_AUTH_PASSWORD":   password,
				"ALPHA_SESSION_BACKEND": "redis",
				"ALPHA_REDIS_ADDR":      redisIP + ":6379",
				"ALPHA_LOG_LEVEL":       "debug",
			},
			WaitingFor: wait.ForHTTP("/api/health").WithPort("4251/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return pc, fmt.Errorf("start portal: %w", err)
	}

	host, err := pc.portal.Host(ctx)
	if err != nil {
		return pc, fmt.Errorf("get portal host: %w", err)
	}
	mappedPort, err := pc.portal.MappedPort(ctx, "4251/tcp")
	if err != nil {
		return pc, fmt.Errorf("get portal mapped port: %w", err)
	}

	pc.url = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	return pc, nil
}
