package process

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TCPOpen succeeds once a TCP connection to addr can be established.
func TCPOpen(addr string) Predicate {
	return func(ctx context.Context) (bool, error) {
		d := net.Dialer{Timeout: 500 * time.Millisecond}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false, nil
		}
		conn.Close()
		return true, nil
	}
}

// LogContains succeeds once logPath contains marker anywhere in its
// current contents. Used for components whose only stable readiness
// signal is a line in their own log.
func LogContains(logPath, marker string) Predicate {
	return func(ctx context.Context) (bool, error) {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return false, nil
		}
		return strings.Contains(string(data), marker), nil
	}
}

// All succeeds only once every predicate succeeds on the same poll.
func All(predicates ...Predicate) Predicate {
	return func(ctx context.Context) (bool, error) {
		for _, p := range predicates {
			ok, err := p(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// HTTPSHealthz succeeds once a GET against url (expected to be an
// HTTPS .../healthz endpoint) returns 200, authenticating with the client
// cert/key pair and trusting the cluster CA.
func HTTPSHealthz(url, caFile, certFile, keyFile string) Predicate {
	return func(ctx context.Context) (bool, error) {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return false, nil
		}
		caPool, err := loadCAPool(caFile)
		if err != nil {
			return false, nil
		}
		client := &http.Client{
			Timeout: 2 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					RootCAs:      caPool,
				},
			},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, nil
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK, nil
	}
}

// CRISocketResponds succeeds once socketPath exists and crictl's version
// probe against it succeeds.
func CRISocketResponds(socketPath string) Predicate {
	return func(ctx context.Context) (bool, error) {
		if _, err := os.Stat(socketPath); err != nil {
			return false, nil
		}
		cmd := exec.CommandContext(ctx, "crictl", "--runtime-endpoint", "unix://"+socketPath, "version")
		return cmd.Run() == nil, nil
	}
}

// KubectlNodeReady succeeds once `kubectl get node <nodeName>` reports a
// Ready condition, using kubeconfigPath for authentication.
func KubectlNodeReady(kubeconfigPath, nodeName string) Predicate {
	return func(ctx context.Context) (bool, error) {
		cmd := exec.CommandContext(ctx, "kubectl", "--kubeconfig", kubeconfigPath,
			"get", "node", nodeName, "-o", "jsonpath={.status.conditions[?(@.type==\"Ready\")].status}")
		out, err := cmd.Output()
		if err != nil {
			return false, nil
		}
		return strings.TrimSpace(string(out)) == "True", nil
	}
}

// KubectlApply applies manifestPath via kubectl against kubeconfigPath.
func KubectlApply(ctx context.Context, kubeconfigPath, manifestPath string) error {
	cmd := exec.CommandContext(ctx, "kubectl", "--kubeconfig", kubeconfigPath, "apply", "-f", manifestPath)
	return cmd.Run()
}

// DeploymentAvailable succeeds once the named Deployment in namespace has
// at least one available replica.
func DeploymentAvailable(kubeconfigPath, namespace, name string) Predicate {
	return func(ctx context.Context) (bool, error) {
		cmd := exec.CommandContext(ctx, "kubectl", "--kubeconfig", kubeconfigPath,
			"-n", namespace, "get", "deployment", name, "-o", "jsonpath={.status.availableReplicas}")
		out, err := cmd.Output()
		if err != nil {
			return false, nil
		}
		n := strings.TrimSpace(string(out))
		return n != "" && n != "0", nil
	}
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(data)
	return pool, nil
}

// TailLines returns the last n lines of logPath, used by the supervisor to
// print a failing component's recent output (spec.md §7's user-visible
// failure behavior).
func TailLines(logPath string, n int) ([]string, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}
