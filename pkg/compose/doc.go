// Package compose drives the Docker Compose CLI for one stack at a time and reads
// the compose labels Docker attaches to project containers.
//
// Key components:
//   - CLI: Implements types.ComposeProject on top of `docker compose -f <file> ...`.
//   - Runner: Executes the compose binary; ExecRunner is the os/exec implementation.
//   - GetServiceName, GetProjectName: Read com.docker.compose.* labels.
//
// Usage example:
//
//	cli := compose.NewCLI(compose.ExecRunner{})
//	project, err := cli.Project(ctx, "/srv/web/docker-compose.yml")
package compose
