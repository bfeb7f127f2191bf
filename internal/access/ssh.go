package access

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig addresses a router that exposes a shell with iptables and nvram.
type SSHConfig struct {
	Addr     string // host:port
	User     string
	Password string
	KeyFile  string
	HostKey  string // authorized_keys format; empty disables host key checking
	Timeout  time.Duration
}

// SSHController blocks devices with an iptables FORWARD DROP rule matched on
// the source MAC and persists the firewall with nvram commit.
type SSHController struct {
	cfg    SSHConfig
	client *ssh.ClientConfig
	run    func(ctx context.Context, cmd string) (string, error)
	logger *slog.Logger
}

func NewSSHController(cfg SSHConfig, logger *slog.Logger) (*SSHController, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("ssh controller: router address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		cfg.Addr = net.JoinHostPort(cfg.Addr, "22")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	var methods []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("ssh controller: password or key file is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parse host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	} else {
		logger.Warn("router host key not pinned, accepting any key", "addr", cfg.Addr)
	}

	c := &SSHController{
		cfg: cfg,
		client: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            methods,
			HostKeyCallback: hostKeyCallback,
			Timeout:         cfg.Timeout,
		},
		logger: logger,
	}
	c.run = c.exec
	return c, nil
}

func (c *SSHController) SetAccess(ctx context.Context, mac string, allow bool) error {
	mac, err := NormalizeMAC(mac)
	if err != nil {
		return err
	}

	rules, err := c.run(ctx, "iptables -L FORWARD -v -n")
	if err != nil {
		return fmt.Errorf("list firewall rules: %w", err)
	}
	blocked := strings.Contains(strings.ToLower(rules), mac)

	switch {
	case allow && blocked:
		if _, err := c.run(ctx, "iptables -D FORWARD -m mac --mac-source "+mac+" -j DROP"); err != nil {
			return fmt.Errorf("remove block rule: %w", err)
		}
	case !allow && !blocked:
		if _, err := c.run(ctx, "iptables -I FORWARD -m mac --mac-source "+mac+" -j DROP"); err != nil {
			return fmt.Errorf("insert block rule: %w", err)
		}
	default:
		c.logger.Debug("device already in requested state", "mac", mac, "allow", allow)
		return nil
	}

	if _, err := c.run(ctx, "nvram commit"); err != nil {
		return fmt.Errorf("persist firewall rules: %w", err)
	}
	return nil
}

// exec runs one command in a fresh session. The connection is closed when
// ctx is done.
func (c *SSHController) exec(ctx context.Context, cmd string) (string, error) {
	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("dial router: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// ClientConfig.Timeout only covers ssh.Dial, so bound the handshake here.
	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.cfg.Addr, c.client)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ssh handshake: %w", err)
	}
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("run %q: %w: %s", cmd, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
