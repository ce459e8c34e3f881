// Package testingh starts throwaway dependency containers for integration tests.
package testingh

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
)

var hostName = os.Getenv("OVERRIDE_HOSTNAME")

func init() {
	const defaultHostName = "localhost"

	if hostName == "" {
		hostName = defaultHostName
	}
}

type Container struct {
	resource *dockertest.Resource
}

type image struct {
	repository string
	tag        string
	port       docker.Port
	env        []string
	cmd        func(hostPort int) []string
}

// Redpanda starts a single-node broker; connectFn receives host:port of the Kafka listener.
func Redpanda(connectFn func(addr string) error) (*Container, error) {
	return run(image{
		repository: "redpandadata/redpanda",
		tag:        "latest",
		port:       "9092/tcp",
		cmd: func(hostPort int) []string {
			return []string{
				"redpanda start",
				"--overprovisioned",
				"--smp 1",
				"--memory 1G",
				"--reserve-memory 0M",
				"--node-id 0",
				"--check=false",
				fmt.Sprintf("--advertise-kafka-addr %s:%v", hostName, hostPort),
			}
		},
	}, connectFn)
}

// Clickhouse starts a server with database test_db and user su/su; connectFn receives
// host:port of the native protocol.
func Clickhouse(connectFn func(addr string) error) (*Container, error) {
	return run(image{
		repository: "clickhouse/clickhouse-server",
		tag:        "latest-alpine",
		port:       "9000/tcp",
		env: []string{
			"CLICKHOUSE_DB=test_db",
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT=1",
			"CLICKHOUSE_USER=su",
			"CLICKHOUSE_PASSWORD=su",
		},
	}, connectFn)
}

// Postgres starts a server with database test_db and user su/su; connectFn receives
// a connection URL.
func Postgres(connectFn func(url string) error) (*Container, error) {
	return run(image{
		repository: "postgres",
		tag:        "16-alpine",
		port:       "5432/tcp",
		env: []string{
			"POSTGRES_DB=test_db",
			"POSTGRES_USER=su",
			"POSTGRES_PASSWORD=su",
		},
	}, func(addr string) error {
		return connectFn(fmt.Sprintf("postgres://su:su@%s/test_db?sslmode=disable", addr))
	})
}

func run(s image, connectFn func(addr string) error) (*Container, error) {
	hostPort, err := getFreePort()
	if err != nil {
		return nil, fmt.Errorf("could not get free hostPort: %w", err)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %w", err)
	}

	opts := &dockertest.RunOptions{
		Repository: s.repository,
		Tag:        s.tag,
		Env:        s.env,
		Auth: docker.AuthConfiguration{
			Username: os.Getenv("ARTIFACTORY_USER"),
			Password: os.Getenv("ARTIFACTORY_PWD"),
		},
		PortBindings: map[docker.Port][]docker.PortBinding{
			s.port: {{
				HostIP:   hostName,
				HostPort: strconv.Itoa(hostPort),
			}},
		},
	}
	if s.cmd != nil {
		opts.Cmd = s.cmd(hostPort)
	}

	resource, err := pool.RunWithOptions(opts, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create a container: %w", err)
	}

	container := &Container{
		resource: resource,
	}
	addr := fmt.Sprintf("%s:%s", hostName, resource.GetPort(string(s.port)))
	// the process inside may not accept connections yet
	if err := pool.Retry(func() error {
		return connectFn(addr)
	}); err != nil {
		_ = resource.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", s.repository, err)
	}

	return container, nil
}

func (c *Container) Purge() error {
	return c.resource.Close()
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
