package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/sdnpulse/sdnpulse/internal/parse"
	"golang.org/x/crypto/ssh"
)

// SSHConfig configures a remote command over SSH.
type SSHConfig struct {
	Host       string `yaml:"host" json:"host" validate:"required"`
	Port       int    `yaml:"port" json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Username   string `yaml:"username" json:"username" validate:"required"`
	Password   string `yaml:"password" json:"-"`
	PrivateKey string `yaml:"private_key" json:"-"`
	Passphrase string `yaml:"passphrase" json:"-"`
	// HostKey pins the server key in authorized_keys format. When empty the
	// host key is not verified.
	HostKey string `yaml:"host_key" json:"-"`
	Command string `yaml:"command" json:"command" validate:"required"`
	Format  string `yaml:"format" json:"format,omitempty"`
}

// SSHEndpoint runs a command on a remote host.
type SSHEndpoint struct {
	address string
	config  *ssh.ClientConfig
	command string
	format  string
}

func newSSHFromConfig(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	if cfg.SSH == nil {
		return nil, missingSection("ssh")
	}
	c := *cfg.SSH
	if !parse.Supported(c.Format) {
		return nil, fmt.Errorf("ssh: unsupported format %q", c.Format)
	}

	var err error
	if c.Password, err = reveal(c.Password); err != nil {
		return nil, fmt.Errorf("ssh: password: %w", err)
	}
	if c.PrivateKey, err = reveal(c.PrivateKey); err != nil {
		return nil, fmt.Errorf("ssh: private key: %w", err)
	}
	if c.Passphrase, err = reveal(c.Passphrase); err != nil {
		return nil, fmt.Errorf("ssh: passphrase: %w", err)
	}
	return NewSSHEndpoint(c)
}

// NewSSHEndpoint prepares the client configuration. Keys are parsed once.
func NewSSHEndpoint(c SSHConfig) (*SSHEndpoint, error) {
	var authMethods []ssh.AuthMethod

	if c.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.Password))
	}

	if c.PrivateKey != "" {
		var key ssh.Signer
		var err error

		if c.Passphrase != "" {
			key, err = ssh.ParsePrivateKeyWithPassphrase([]byte(c.PrivateKey), []byte(c.Passphrase))
		} else {
			key, err = ssh.ParsePrivateKey([]byte(c.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("ssh: failed to parse private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(key))
	}

	if len(authMethods) == 0 {
		return nil, errors.New("ssh: no authentication method provided (password or private_key required)")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.HostKey != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(c.HostKey))
		if err != nil {
			return nil, fmt.Errorf("ssh: failed to parse host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	}

	port := c.Port
	if port == 0 {
		port = 22
	}

	return &SSHEndpoint{
		address: net.JoinHostPort(c.Host, strconv.Itoa(port)),
		config: &ssh.ClientConfig{
			User:            c.Username,
			Auth:            authMethods,
			HostKeyCallback: hostKeyCallback,
		},
		command: c.Command,
		format:  c.Format,
	}, nil
}

// Attempt opens a connection, runs the command and closes the connection.
func (e *SSHEndpoint) Attempt(ctx context.Context) (any, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", e.address)
	if err != nil {
		return nil, fmt.Errorf("ssh dial failed: %w", err)
	}

	// Closing the connection unblocks the handshake and the session.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, e.address, e.config)
	if err != nil {
		conn.Close()
		return nil, ctxErrOr(ctx, fmt.Errorf("ssh handshake failed: %w", err))
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("ssh session failed: %w", err))
	}
	defer session.Close()

	out, err := session.Output(e.command)
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("ssh command failed: %w", err))
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return parse.Decode(e.format, out)
}

// ctxErrOr prefers the context error when the context ended the operation.
func ctxErrOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
