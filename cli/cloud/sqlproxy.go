package cloud

import (
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/apex/log"
	"github.com/avast/retry-go"
)

const (
	proxyReadyAttempts = 40
	proxyReadyInterval = 500 * time.Millisecond
)

// SQLProxy is a running cloud_sql_proxy process serving a Cloud SQL instance
// on a local TCP port.
type SQLProxy struct {
	cmd *exec.Cmd

	// Port is the local port the proxy listens on.
	Port int
}

// StartSQLProxy launches the proxy for the given connection name
// ("<project>:<region>:<instance>") on a free local port and waits until it
// accepts connections.
func StartSQLProxy(executable string, connectionName string) (*SQLProxy, error) {
	if executable == "" {
		executable = "cloud_sql_proxy"
	}

	port, err := freePort()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(executable,
		fmt.Sprintf("-instances=%s=tcp:%d", connectionName, port))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %s", executable, err)
	}
	log.Debugf("Started the Cloud SQL proxy on port %d.", port)

	proxy := &SQLProxy{cmd: cmd, Port: port}
	if err := proxy.waitReady(); err != nil {
		proxy.Stop()
		return nil, err
	}

	return proxy, nil
}

// Stop terminates the proxy process.
func (p *SQLProxy) Stop() {
	if p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil {
		log.Debugf("Failed to stop the Cloud SQL proxy: %s.", err)
	}
	p.cmd.Wait()
}

func (p *SQLProxy) waitReady() error {
	address := fmt.Sprintf("127.0.0.1:%d", p.Port)
	return retry.Do(
		func() error {
			conn, err := net.DialTimeout("tcp", address, proxyReadyInterval)
			if err != nil {
				return fmt.Errorf("the Cloud SQL proxy does not accept "+
					"connections on %s yet", address)
			}
			conn.Close()
			return nil
		},
		retry.Attempts(proxyReadyAttempts),
		retry.Delay(proxyReadyInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free local port: %s", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil
}
