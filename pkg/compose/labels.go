package compose

import "github.com/sirupsen/logrus"

// Docker Compose labels.
const (
	// ComposeProjectLabel specifies the project name of the container in Docker Compose.
	ComposeProjectLabel = "com.docker.compose.project"
	// ComposeServiceLabel specifies the service name of the container in Docker Compose.
	ComposeServiceLabel = "com.docker.compose.service"
	// ComposeContainerNumber specifies the container number of the container in Docker Compose.
	ComposeContainerNumber = "com.docker.compose.container-number"
)

// GetProjectName extracts the project name from Docker Compose labels.
//
// Parameters:
//   - labels: Map of container labels.
//
// Returns:
//   - string: Project name if present, empty string otherwise.
func GetProjectName(labels map[string]string) string {
	return lookupLabel(labels, ComposeProjectLabel)
}

// GetServiceName extracts the service name from Docker Compose labels.
//
// Parameters:
//   - labels: Map of container labels.
//
// Returns:
//   - string: Service name if present, empty string otherwise.
func GetServiceName(labels map[string]string) string {
	return lookupLabel(labels, ComposeServiceLabel)
}

// GetContainerNumber extracts the replica number from Docker Compose labels.
//
// Parameters:
//   - labels: Map of container labels.
//
// Returns:
//   - string: Container replica number if present, empty string otherwise.
func GetContainerNumber(labels map[string]string) string {
	return lookupLabel(labels, ComposeContainerNumber)
}

func lookupLabel(labels map[string]string, key string) string {
	if labels == nil {
		return ""
	}

	value, ok := labels[key]
	if !ok {
		return ""
	}

	logrus.WithFields(logrus.Fields{
		"label": key,
		"value": value,
	}).Trace("Retrieved compose label")

	return value
}
