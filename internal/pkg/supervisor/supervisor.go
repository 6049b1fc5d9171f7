// Package supervisor runs the mail dispatch process as a supervised child of
// the API process and restarts it when it dies.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	EnvRole = "NOTIFY_ROLE"

	RoleAPI    = "api"
	RoleMailer = "mailer"
)

// ExitCodeTransport is the exit code the mailer child uses when the mail
// transport is unreachable. The supervisor backs off before restarting so a
// dead SMTP server is not hammered in a tight loop.
const ExitCodeTransport = 75

// DefaultTransportBackoff is how long the supervisor waits before restarting
// a child that exited with ExitCodeTransport.
const DefaultTransportBackoff = 5 * time.Second

// IsMailer reports whether this process was spawned as the mailer child.
func IsMailer() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(EnvRole)), RoleMailer)
}

// Options tune the restart policy.
type Options struct {
	TransportBackoff time.Duration
}

// Supervisor keeps one mailer child alive. A clean exit (code 0) stops the
// supervision; every other exit restarts the child, with a backoff when the
// exit code says the transport was down.
type Supervisor struct {
	log  *zap.Logger
	opts Options

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(log *zap.Logger, opts Options) *Supervisor {
	if opts.TransportBackoff <= 0 {
		opts.TransportBackoff = DefaultTransportBackoff
	}
	return &Supervisor{
		log:    log,
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the mailer child and the supervision loop.
func (s *Supervisor) Start() error {
	cmd, err := s.spawn()
	if err != nil {
		return err
	}
	go s.loop(cmd)
	return nil
}

// Stop asks the child to shut down and waits for the supervision loop to
// drain. Safe to call once.
func (s *Supervisor) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Supervisor) spawn() (*exec.Cmd, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	args := append([]string{}, os.Args[1:]...)
	cmd := exec.Command(executable, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = childEnv(os.Environ())

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mailer child: %w", err)
	}
	s.log.Info("mailer child started", zap.Int("pid", cmd.Process.Pid))
	return cmd, nil
}

func (s *Supervisor) loop(cmd *exec.Cmd) {
	defer close(s.doneCh)

	for {
		exitCh := make(chan int, 1)
		go func(c *exec.Cmd) {
			exitCh <- exitCode(c.Wait())
		}(cmd)

		select {
		case <-s.stopCh:
			if cmd.Process != nil {
				_ = cmd.Process.Signal(os.Interrupt)
			}
			select {
			case <-exitCh:
			case <-time.After(8 * time.Second):
				_ = cmd.Process.Kill()
				<-exitCh
			}
			s.log.Info("mailer child stopped")
			return

		case code := <-exitCh:
			if code == 0 {
				s.log.Info("mailer child exited cleanly")
				return
			}

			if code == ExitCodeTransport {
				s.log.Warn("mailer child lost the mail transport, restarting after backoff",
					zap.Int("code", code),
					zap.Duration("backoff", s.opts.TransportBackoff))
				select {
				case <-s.stopCh:
					return
				case <-time.After(s.opts.TransportBackoff):
				}
			} else {
				s.log.Warn("mailer child crashed, restarting", zap.Int("code", code))
			}

			next, err := s.spawn()
			if err != nil {
				s.log.Error("restart mailer child failed", zap.Error(err))
				return
			}
			cmd = next
		}
	}
}

func childEnv(base []string) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, EnvRole+"=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, EnvRole+"="+RoleMailer)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
