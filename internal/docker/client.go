package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
)

// ManagedLabel marks containers owned by this controller.
const ManagedLabel = "com.legal-analyzer.managed"

// Client wraps the official Docker client to provide specific functionalities.
type Client struct {
	cli *client.Client
}

// New creates a new Docker client wrapper.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	return err
}

// BindMount describes a host directory bound into the container.
type BindMount struct {
	Source string
	Target string
}

// ContainerSpec is everything needed to run the application container.
type ContainerSpec struct {
	Name   string
	Image  string
	Env    []string
	Port   int // published on the same host port
	Mounts []BindMount
}

// BuildImage builds an image from contextDir's Dockerfile and tags it.
// Build output is streamed to out; a failed step surfaces as an error.
func (c *Client) BuildImage(ctx context.Context, contextDir, tag string, out io.Writer) error {
	buildCtx, err := BuildContext(contextDir)
	if err != nil {
		return fmt.Errorf("failed to pack build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := c.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return drainBuildOutput(resp.Body, out)
}

// drainBuildOutput consumes the daemon's JSON build stream, forwarding
// human-readable progress and surfacing the first reported error.
func drainBuildOutput(body io.Reader, out io.Writer) error {
	type buildLine struct {
		Stream string `json:"stream"`
		Error  string `json:"error"`
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line buildLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Error != "" {
			return fmt.Errorf("build step failed: %s", line.Error)
		}
		if line.Stream != "" && out != nil {
			io.WriteString(out, line.Stream)
		}
	}
	return scanner.Err()
}

// ReplaceContainer stops and removes any container with spec.Name, then
// creates and starts a fresh one. Returns the new container ID.
func (c *Client) ReplaceContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if err := c.RemoveByName(ctx, spec.Name); err != nil {
		return "", err
	}

	port := nat.Port(strconv.Itoa(spec.Port) + "/tcp")
	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: m.Source, Target: m.Target})
	}

	containerConfig := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		Tty:          true,
		ExposedPorts: nat.PortSet{port: {}},
		Labels:       map[string]string{ManagedLabel: "true"},
	}
	hostConfig := &container.HostConfig{
		Mounts: mounts,
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.Port)}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	resp, err := c.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return resp.ID, err
	}
	return resp.ID, nil
}

// StopByName stops the named container. A missing container is not an error;
// the boolean reports whether anything was actually stopped.
func (c *Client) StopByName(ctx context.Context, name string) (bool, error) {
	existing, err := c.findByName(ctx, name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	// 10 seconds of grace before the daemon kills it.
	timeout := 10
	if err := c.cli.ContainerStop(ctx, existing.ID, container.StopOptions{Timeout: &timeout}); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveByName force-removes the named container if it exists.
func (c *Client) RemoveByName(ctx context.Context, name string) error {
	existing, err := c.findByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	log.Debug().Str("container_id", existing.ID).Msg("Removing previous container")
	err = c.cli.ContainerRemove(ctx, existing.ID, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return err
	}
	return nil
}

func (c *Client) findByName(ctx context.Context, name string) (*types.Container, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, err
	}
	for i := range containers {
		for _, n := range containers[i].Names {
			if n == "/"+name {
				return &containers[i], nil
			}
		}
	}
	return nil, nil
}

// ListManaged lists all containers carrying the controller's label.
func (c *Client) ListManaged(ctx context.Context) ([]types.Container, error) {
	return c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedLabel+"=true")),
	})
}

// StreamLogs copies the named container's logs to out until the stream ends
// or ctx is cancelled.
func (c *Client) StreamLogs(ctx context.Context, name string, follow bool, out io.Writer) error {
	existing, err := c.findByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("container %q not found", name)
	}

	reader, err := c.cli.ContainerLogs(ctx, existing.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
		Tail:       "100",
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(out, reader)
	return err
}

// PruneBuildCache clears the builder cache and dangling images, returning
// the total bytes reclaimed.
func (c *Client) PruneBuildCache(ctx context.Context) (uint64, error) {
	report, err := c.cli.BuildCachePrune(ctx, types.BuildCachePruneOptions{All: true})
	if err != nil {
		return 0, err
	}
	reclaimed := report.SpaceReclaimed

	imgReport, err := c.cli.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true")))
	if err != nil {
		return reclaimed, err
	}
	return reclaimed + imgReport.SpaceReclaimed, nil
}
