package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label keys persisted on rehearsal containers. The "deployctl." prefix
// keeps them apart from labels set by images or other tools.
const (
	// LabelPrefix is the common prefix of every deployctl label.
	LabelPrefix = "deployctl."

	// LabelManagedBy marks containers created by deployctl. Its value is
	// always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject holds the project name (deploy file name or directory).
	LabelProject = LabelPrefix + "project"

	// LabelPort holds the port the server listens on inside the container.
	LabelPort = LabelPrefix + "port"

	// LabelHostPort holds the host port published for LabelPort. It differs
	// from LabelPort only when the server port was busy on the host.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelCreatedAt holds the RFC 3339 creation time in UTC.
	LabelCreatedAt = LabelPrefix + "created-at"

	// LabelRevision holds the source revision ("branch@commit") when the
	// project is a Git checkout. It is optional.
	LabelRevision = LabelPrefix + "revision"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "deployctl"

// Rehearsal is a rehearsal container as reconstructed from its labels and
// daemon state.
type Rehearsal struct {
	ContainerID   string    `json:"containerId"`
	ContainerName string    `json:"containerName"`
	Image         string    `json:"image"`
	Status        string    `json:"status"`
	Project       string    `json:"project"`
	Port          int       `json:"port"`
	HostPort      int       `json:"hostPort"`
	Revision      string    `json:"revision,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// URL is the address the rehearsed server answers on from the host.
func (r *Rehearsal) URL() string {
	return fmt.Sprintf("http://localhost:%d", r.HostPort)
}

// BuildLabels returns the labels for a new rehearsal container.
func BuildLabels(project string, port, hostPort int, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   project,
		LabelPort:      strconv.Itoa(port),
		LabelHostPort:  strconv.Itoa(hostPort),
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels rebuilds the label-derived fields of a Rehearsal. It is the
// inverse of BuildLabels. A missing host-port label defaults to the
// container port.
func ParseLabels(labels map[string]string) (*Rehearsal, error) {
	var missing []string
	for _, key := range []string{LabelManagedBy, LabelProject, LabelPort, LabelCreatedAt} {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	port, err := strconv.Atoi(labels[LabelPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelPort, err)
	}

	hostPort := port
	if v, ok := labels[LabelHostPort]; ok {
		hostPort, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid label %s: %w", LabelHostPort, err)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &Rehearsal{
		Project:   labels[LabelProject],
		Port:      port,
		HostPort:  hostPort,
		Revision:  labels[LabelRevision],
		CreatedAt: createdAt,
	}, nil
}

// FilterLabels returns "key=value" label filters selecting rehearsal
// containers, optionally narrowed to one project.
func FilterLabels(project string) []string {
	filters := []string{LabelManagedBy + "=" + ManagedByValue}
	if project != "" {
		filters = append(filters, LabelProject+"="+project)
	}
	return filters
}

// ContainerName returns the container name for a project rehearsal on
// port. Characters Docker does not accept in names are replaced with '-'.
func ContainerName(project string, port int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(project) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-._")
	if name == "" {
		name = "app"
	}
	return fmt.Sprintf("deployctl-%s-%d", name, port)
}
