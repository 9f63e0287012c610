package transport

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultPromptPattern matches a typical OpenWRT ash prompt, e.g. "root@lan-ap1:~# ".
const DefaultPromptPattern = `root@[^:]+:.*[#\$]`

// Serial is a Transport backed by a serial console session, including the
// login handshake. Grounded on wrtkit.serial_connection.SerialConnection.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration
	prompt   *regexp.Regexp

	loginUsername string
	loginPassword string

	conn     serial.Port
	loggedIn bool
}

// NewSerial builds an unconnected serial transport. baudRate defaults to
// 115200 and prompt to DefaultPromptPattern when zero/empty.
func NewSerial(portName string, baudRate int, timeout time.Duration, promptPattern, loginUsername, loginPassword string) (*Serial, error) {
	if baudRate == 0 {
		baudRate = 115200
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if promptPattern == "" {
		promptPattern = DefaultPromptPattern
	}
	re, err := regexp.Compile(promptPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling prompt pattern %q: %w", promptPattern, err)
	}
	return &Serial{
		port:          portName,
		baudRate:      baudRate,
		timeout:       timeout,
		prompt:        re,
		loginUsername: loginUsername,
		loginPassword: loginPassword,
	}, nil
}

// Connect opens the serial port and, if credentials were supplied,
// performs the login handshake.
func (s *Serial) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(s.port, mode)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.port, err)
	}
	_ = p.SetReadTimeout(200 * time.Millisecond)
	s.conn = p

	time.Sleep(500 * time.Millisecond)
	s.drainInput()

	s.conn.Write([]byte("\n"))
	time.Sleep(500 * time.Millisecond)

	if !s.loggedIn {
		if err := s.handleLogin(); err != nil {
			s.conn.Close()
			s.conn = nil
			return err
		}
	}

	return nil
}

func (s *Serial) handleLogin() error {
	if s.loginUsername == "" {
		s.loggedIn = true
		return nil
	}

	output := s.readUntilPromptOrLogin(s.timeout)
	if strings.Contains(strings.ToLower(output), "login:") {
		s.conn.Write([]byte(s.loginUsername + "\n"))
		time.Sleep(500 * time.Millisecond)

		chunk := s.readChunk()
		if strings.Contains(strings.ToLower(chunk), "password:") && s.loginPassword != "" {
			s.conn.Write([]byte(s.loginPassword + "\n"))
			time.Sleep(time.Second)
			s.waitForPrompt(s.timeout)
		}
	}

	s.loggedIn = true
	return nil
}

func (s *Serial) readChunk() string {
	buf := make([]byte, 4096)
	n, err := s.conn.Read(buf)
	if err != nil || n == 0 {
		return ""
	}
	return string(buf[:n])
}

func (s *Serial) readUntilPromptOrLogin(timeout time.Duration) string {
	var output strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		chunk := s.readChunk()
		if chunk != "" {
			output.WriteString(chunk)
			if s.prompt.MatchString(output.String()) || strings.Contains(strings.ToLower(output.String()), "login:") {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return output.String()
}

func (s *Serial) waitForPrompt(timeout time.Duration) string {
	var output strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		chunk := s.readChunk()
		if chunk != "" {
			output.WriteString(chunk)
			if s.prompt.MatchString(output.String()) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return output.String()
}

func (s *Serial) drainInput() {
	_ = s.conn.ResetInputBuffer()
}

// Disconnect closes the serial port.
func (s *Serial) Disconnect() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.loggedIn = false
	return err
}

// IsOpen reports whether the port is open.
func (s *Serial) IsOpen() bool {
	return s.conn != nil
}

// Execute sends a command line and waits for the shell prompt, then runs
// `echo $?` to recover the exit code, mirroring the Python reference
// implementation's lack of stderr separation on serial consoles.
func (s *Serial) Execute(ctx context.Context, command string) (string, string, int, error) {
	if s.conn == nil {
		if err := s.Connect(ctx); err != nil {
			return "", "", -1, err
		}
	}

	s.drainInput()
	s.conn.Write([]byte(command + "\n"))
	time.Sleep(200 * time.Millisecond)

	output := s.waitForPrompt(s.timeout)

	var filtered []string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, command) || s.prompt.MatchString(line) {
			continue
		}
		filtered = append(filtered, line)
	}
	stdout := strings.TrimSpace(strings.Join(filtered, "\n"))

	s.conn.Write([]byte("echo $?\n"))
	time.Sleep(200 * time.Millisecond)
	exitOutput := s.waitForPrompt(s.timeout)

	exitCode := 0
	for _, line := range strings.Split(exitOutput, "\n") {
		line = strings.TrimSpace(line)
		if n, err := strconv.Atoi(line); err == nil {
			exitCode = n
			break
		}
	}

	return stdout, "", exitCode, nil
}

// GetUCIConfig retrieves a package's on-device export text.
func (s *Serial) GetUCIConfig(ctx context.Context, pkg string) (string, error) {
	return ExecuteUCIConfig(ctx, s, pkg)
}
