package hosts

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHClient abstracts SSH operations for testing.
type SSHClient interface {
	// RunCommand executes a command on the given host and returns combined output.
	RunCommand(host Host, command string) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// RealSSHClient implements SSHClient using actual SSH connections
// authenticated through the local SSH agent.
type RealSSHClient struct {
	sshConfig   SSHConfig
	agentConn   net.Conn // connection to SSH agent, closed in Close()
	agentClient agent.ExtendedAgent
	signers     []ssh.Signer
	username    string
}

// NewSSHClient creates a new SSH client that connects via the SSH agent.
func NewSSHClient(cfg SSHConfig) (*RealSSHClient, error) {
	authSock := os.Getenv("SSH_AUTH_SOCK")
	if authSock == "" {
		return nil, fmt.Errorf("SSH agent not running. Start with `eval $(ssh-agent)` and add keys with `ssh-add`")
	}

	conn, err := net.Dial("unix", authSock)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to SSH agent at %s: %w", authSock, err)
	}

	agentClient := agent.NewClient(conn)

	keys, err := agentClient.List()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("listing SSH agent keys: %w", err)
	}
	if len(keys) == 0 {
		conn.Close()
		return nil, fmt.Errorf("SSH agent has no keys. Add keys with `ssh-add`")
	}

	signers, err := agentClient.Signers()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("getting SSH agent signers: %w", err)
	}

	username := ""
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &RealSSHClient{
		sshConfig:   cfg,
		agentConn:   conn,
		agentClient: agentClient,
		signers:     signers,
		username:    username,
	}, nil
}

// RunCommand connects to a host and runs a command.
func (c *RealSSHClient) RunCommand(host Host, command string) (string, error) {
	timeout := time.Duration(c.sshConfig.ConnectTimeout) * time.Second

	// InsecureIgnoreHostKey disables host key verification. This is acceptable
	// for an internal tool on a trusted network where extraction hosts are
	// managed infrastructure. For untrusted networks, use a known_hosts file.
	clientConfig := &ssh.ClientConfig{
		User:            c.username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signers...)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", host.Name+":22", clientConfig)
	if err != nil {
		return "", wrapSSHError(err, host.Name)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("creating SSH session on %s: %w", host.Name, err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		// Command execution errors are non-fatal — we still have partial output
		return string(output), nil
	}
	return string(output), nil
}

// Close releases SSH client resources including the agent connection.
func (c *RealSSHClient) Close() error {
	if c.agentConn != nil {
		return c.agentConn.Close()
	}
	return nil
}

// wrapSSHError produces actionable error messages based on SSH error types.
func wrapSSHError(err error, host string) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "no supported methods remain"):
		return fmt.Errorf("SSH authentication failed for %s. Check ~/.ssh/config and ensure your key is authorized", host)
	case strings.Contains(errStr, "i/o timeout") || strings.Contains(errStr, "connection timed out"):
		return fmt.Errorf("connection to %s timed out", host)
	case strings.Contains(errStr, "connection refused"):
		return fmt.Errorf("connection refused by %s — is SSH running on the host?", host)
	default:
		return fmt.Errorf("SSH error connecting to %s: %w", host, err)
	}
}
