package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSH is a Transport backed by a single persistent SSH connection, one
// exec session per Execute call. Grounded on wrtkit.ssh.SSHConnection and
// the teacher's pkg/device/tunnel.go dial pattern.
type SSH struct {
	host     string
	port     int
	username string
	password string
	keyFile  string
	timeout  time.Duration

	client *ssh.Client
}

// NewSSH builds an unconnected SSH transport. port defaults to 22 if zero.
func NewSSH(host string, port int, username, password, keyFile string, timeout time.Duration) *SSH {
	if port == 0 {
		port = 22
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SSH{host: host, port: port, username: username, password: password, keyFile: keyFile, timeout: timeout}
}

func (s *SSH) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if s.keyFile != "" {
		data, err := os.ReadFile(s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", s.keyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing key file %s: %w", s.keyFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if s.password != "" {
		methods = append(methods, ssh.Password(s.password))
	}
	return methods, nil
}

// Connect dials the SSH session. A no-op if already connected.
func (s *SSH) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	methods, err := s.authMethods()
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            s.username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.timeout,
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SSH handshake %s@%s: %w", s.username, addr, err)
	}

	s.client = ssh.NewClient(sshConn, chans, reqs)
	return nil
}

// Disconnect closes the SSH connection.
func (s *SSH) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// IsOpen reports whether the session is connected.
func (s *SSH) IsOpen() bool {
	return s.client != nil
}

// Execute runs a command in a fresh SSH session and captures its output
// and exit status.
func (s *SSH) Execute(ctx context.Context, command string) (string, string, int, error) {
	if s.client == nil {
		if err := s.Connect(ctx); err != nil {
			return "", "", -1, err
		}
	}

	session, err := s.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(command)
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return stdout.String(), stderr.String(), -1, fmt.Errorf("SSH exec %q: %w", command, runErr)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// GetUCIConfig retrieves a package's on-device export text.
func (s *SSH) GetUCIConfig(ctx context.Context, pkg string) (string, error) {
	return ExecuteUCIConfig(ctx, s, pkg)
}
