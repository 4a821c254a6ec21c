package services

import "errors"

// Failure classes for lifecycle operations. Each maps to a distinct
// process exit code in main.
var (
	// ErrPrerequisite means a required tool or resource was missing
	// before any work started (daemon unreachable, disk too small).
	ErrPrerequisite = errors.New("prerequisite check failed")

	// ErrBuild means the image build failed; nothing was deployed.
	ErrBuild = errors.New("image build failed")

	// ErrDeploy means the container could not be created or started.
	ErrDeploy = errors.New("container deploy failed")

	// ErrHealthTimeout means the app never answered the health probe.
	ErrHealthTimeout = errors.New("health check timed out")
)
