package daemon

import (
	"bufio"
	"bytes"
	"context"
	"log"
	"os/exec"
	"strings"
	"time"
)

// ProcessSpawner spawns the talon controller binary under an
// environment captured from a profile script.
// Spawn is fire-and-forget: the controller is expected to start
// populating shared memory on its own within the initialization
// timeout, which the caller enforces separately via waitPointing.
type ProcessSpawner struct {
	// Command is the controller executable to start (e.g. "telescoped").
	Command string
	Args    []string
	// ProfileScript is sourced in a sub-shell to build the child's
	// environment (e.g. "/etc/profile.d/talon.sh").
	ProfileScript string
	// EnvTimeout bounds how long the profile sub-shell is given to run.
	EnvTimeout time.Duration
}

// Spawn starts the controller process in the background.
func (s *ProcessSpawner) Spawn(ctx context.Context) error {
	env := s.captureEnv(ctx)
	cmd := exec.Command(s.Command, s.Args...)
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		return err
	}
	// Fire-and-forget: reap the process in the background so it doesn't
	// become a zombie, without blocking Spawn on controller lifetime.
	go cmd.Wait()
	return nil
}

// captureEnv runs `sh -c 'source FILE && env'` with a bounded timeout
// and parses KEY=VALUE lines into a slice suitable for exec.Cmd.Env. On
// any failure it falls back to an empty environment rather than
// propagating the failure up to Spawn.
func (s *ProcessSpawner) captureEnv(ctx context.Context) []string {
	if s.ProfileScript == "" {
		return []string{}
	}
	timeout := s.EnvTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", "source "+s.ProfileScript+" && env")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		log.Printf("talond: capturing environment from %s: %v; spawning with empty environment", s.ProfileScript, err)
		return []string{}
	}
	env := []string{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "=") {
			env = append(env, line)
		}
	}
	return env
}
