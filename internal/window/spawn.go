package window

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Spec describes the child process a window runs.
type Spec struct {
	Program string
	Args    []string
	Dir     string
	Env     []string
}

// Process is a started child.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
	// Kill asks the process (and its group) to terminate.
	Kill() error
}

// Spawner starts window processes.
type Spawner interface {
	Spawn(spec Spec) (Process, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(spec Spec) (Process, error)

func (f SpawnerFunc) Spawn(spec Spec) (Process, error) {
	return f(spec)
}

// ExecSpawner runs each window's program as a child in its own process
// group, so a hangup reaches everything the shell started.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(spec Spec) (Process, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	err := unix.Kill(-p.cmd.Process.Pid, unix.SIGHUP)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
