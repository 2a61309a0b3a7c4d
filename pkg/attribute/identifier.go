package attribute

import (
	"fmt"
	"strings"

	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// ProjectIdentifier is the fully qualified "workspace/project" name. It is
// immutable once parsed and is carried through every retrieval call.
type ProjectIdentifier string

// ParseProjectIdentifier validates the "workspace/project" shape.
func ParseProjectIdentifier(s string) (ProjectIdentifier, error) {
	if s == "" {
		return "", fetcherr.ErrProjectNotProvided
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fetcherr.Userf("invalid project %q: expected the form workspace/project", s)
	}
	return ProjectIdentifier(s), nil
}

func (p ProjectIdentifier) Workspace() string {
	workspace, _, _ := strings.Cut(string(p), "/")
	return workspace
}

func (p ProjectIdentifier) Name() string {
	_, name, _ := strings.Cut(string(p), "/")
	return name
}

func (p ProjectIdentifier) String() string { return string(p) }

// SysID is the opaque server-issued short identifier of a run, unique within
// a project. It carries no ordering semantics.
type SysID string

// RunIdentifier pins a run globally.
type RunIdentifier struct {
	Project ProjectIdentifier
	SysID   SysID
}

func (r RunIdentifier) String() string {
	return fmt.Sprintf("%s/%s", r.Project, r.SysID)
}

// ContainerType selects whether a query addresses stand-alone runs or
// experiment heads.
type ContainerType int

const (
	ContainerRun ContainerType = iota
	ContainerExperiment
)

func (c ContainerType) String() string {
	switch c {
	case ContainerRun:
		return "run"
	case ContainerExperiment:
		return "experiment"
	}
	return fmt.Sprintf("container type %d", int(c))
}

// LabelAttribute is the system attribute holding the user-facing name for
// this container type.
func (c ContainerType) LabelAttribute() string {
	if c == ContainerExperiment {
		return "sys/name"
	}
	return "sys/custom_run_id"
}
