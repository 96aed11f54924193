// Command kubernix bootstraps a self-contained single-host Kubernetes
// development cluster: PKI, etcd, control plane, worker nodes, CoreDNS,
// and an interactive shell. Flag/env binding follows the cobra+viper root
// command pattern of the MCP server example's cmd/root.go (signal-driven
// graceful shutdown via a dedicated channel).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubernix/kubernix/internal/assets"
	"github.com/kubernix/kubernix/internal/components"
	"github.com/kubernix/kubernix/internal/config"
	"github.com/kubernix/kubernix/internal/kubeconfig"
	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
	"github.com/kubernix/kubernix/internal/netplan"
	"github.com/kubernix/kubernix/internal/node"
	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/runtime"
	"github.com/kubernix/kubernix/internal/shellrun"
	"github.com/kubernix/kubernix/internal/supervisor"
	"github.com/kubernix/kubernix/internal/sysprep"
	"github.com/kubernix/kubernix/internal/tui"
)

func main() {
	root := newRootCommand()
	root.AddCommand(newShellCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kubernix",
		Short: "Bootstrap a self-contained single-host Kubernetes development cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap(cmd)
		},
	}
	bindFlags(cmd)
	return cmd
}

func newShellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Attach a new shell to an existing run root, skipping cluster bootstrap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return attachShell(cmd)
		},
	}
	bindFlags(cmd)
	return cmd
}

func bindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("root", "r", "", "run root directory (default ./kubernix-run)")
	flags.StringP("log-level", "l", "", "trace|debug|info|warn|error (default info)")
	flags.StringP("cidr", "c", "", "base IPv4 CIDR (default 10.10.0.0/16)")
	flags.StringP("shell", "s", "", "shell to launch (default $SHELL or sh)")
	flags.BoolP("no-shell", "e", false, "skip launching a shell after bootstrap")
	flags.IntP("nodes", "n", 0, "number of worker nodes (default 1)")
	flags.StringP("runtime", "u", "", "container runtime binary (default podman)")
	flags.StringP("overlay", "o", "", "path to an overlay of extra hermetic packages")
	flags.StringSliceP("packages", "p", nil, "extra packages to make available on PATH")
	flags.BoolP("container", "a", false, "container mode: skip host kernel/sysctl prep")
	flags.Bool("tui", false, "show a live progress dashboard while the cluster bootstraps")

	viper.BindPFlag("root", flags.Lookup("root"))
	viper.BindPFlag("log-level", flags.Lookup("log-level"))
	viper.BindPFlag("cidr", flags.Lookup("cidr"))
	viper.BindPFlag("shell", flags.Lookup("shell"))
	viper.BindPFlag("nodes", flags.Lookup("nodes"))
	viper.BindPFlag("runtime", flags.Lookup("runtime"))
	viper.BindPFlag("overlay", flags.Lookup("overlay"))
	viper.BindPFlag("container", flags.Lookup("container"))
}

func cliRaw(cmd *cobra.Command) config.Raw {
	flags := cmd.Flags()
	var raw config.Raw

	if flags.Changed("root") {
		v, _ := flags.GetString("root")
		raw.RootDir = &v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		raw.LogLevel = &v
	}
	if flags.Changed("cidr") {
		v, _ := flags.GetString("cidr")
		raw.CIDR = &v
	}
	if flags.Changed("shell") {
		v, _ := flags.GetString("shell")
		raw.Shell = &v
	} else if v, _ := flags.GetBool("no-shell"); v {
		empty := ""
		raw.Shell = &empty
	}
	if flags.Changed("nodes") {
		v, _ := flags.GetInt("nodes")
		raw.Nodes = &v
	}
	if flags.Changed("runtime") {
		v, _ := flags.GetString("runtime")
		raw.Runtime = &v
	}
	if flags.Changed("overlay") {
		v, _ := flags.GetString("overlay")
		raw.OverlayPath = &v
	}
	if flags.Changed("packages") {
		v, _ := flags.GetStringSlice("packages")
		raw.ExtraPackages = &v
	}
	if flags.Changed("container") {
		v, _ := flags.GetBool("container")
		raw.ContainerMode = &v
	}
	return raw
}

func bootstrap(cmd *cobra.Command) error {
	cli := cliRaw(cmd)
	env := config.EnvRaw(os.Environ())

	bootLog := logging.New("info", os.Stderr)
	cfg, explicit, _, err := config.Resolve(cli, env, bootLog)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)

	if err := cfg.Save(explicit); err != nil {
		return err
	}
	if err := cfg.WriteEnvFile(hermeticPathDirs(cfg)); err != nil {
		return err
	}

	if err := sysprep.CheckBinaries(cfg.Runtime, cfg.ExtraPackages); err != nil {
		return err
	}
	if !cfg.ContainerMode {
		if err := sysprep.Check(); err != nil {
			return err
		}
	}

	plan, err := netplan.Compute(cfg.CIDR, cfg.Nodes)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	bundle, err := pki.Generate(cfg.Paths(), plan, cfg.Nodes, hostname)
	if err != nil {
		return err
	}

	if err := assets.WriteEncryptionConfig(cfg.Paths()); err != nil {
		return err
	}
	for i := 0; i < cfg.Nodes; i++ {
		if err := assets.WriteCRIOAssets(cfg.Paths(), i, plan, cfg.Paths().NixDir()); err != nil {
			return err
		}
		if err := assets.WriteProxyConfig(cfg.Paths(), i, plan); err != nil {
			return err
		}
		if err := assets.WriteKubeletConfig(cfg.Paths(), i, plan); err != nil {
			return err
		}
	}
	if _, err := assets.WriteCoreDNSManifest(cfg.Paths(), plan); err != nil {
		return err
	}

	apiServerAddr := fmt.Sprintf("%s:6443", plan.APIAdvertiseIP.String())
	kubeconfigs, err := kubeconfig.WriteAll(bundle, cfg.Nodes, apiServerAddr)
	if err != nil {
		return err
	}

	var nodeManager *node.Manager
	if cfg.Nodes > 1 {
		nodeManager = node.NewManager(runtime.New(cfg.Runtime), cfg.Paths(), "kubernix-node:latest")
	}

	componentEnv := components.Env{
		Config:      cfg,
		Plan:        plan,
		Bundle:      bundle,
		Paths:       cfg.Paths(),
		Kubeconfigs: kubeconfigs,
		NodeManager: nodeManager,
	}

	adapters := components.All(cfg.Nodes, hostname)
	sup, err := supervisor.New(adapters, componentEnv, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(sup, cancel)

	showTUI, _ := cmd.Flags().GetBool("tui")
	if showTUI {
		names := make([]string, len(adapters))
		for i, a := range adapters {
			names[i] = a.Name
		}
		go func() {
			if err := tui.Run(sup.Events(), names); err != nil {
				log.Warn("dashboard exited: %v", err)
			}
		}()
	}

	if err := sup.Start(ctx); err != nil {
		return err
	}
	log.Info("cluster is up")

	if cfg.Shell == "" {
		return nil
	}
	return runShellAndTeardown(ctx, cfg, sup, log)
}

func attachShell(cmd *cobra.Command) error {
	cli := cliRaw(cmd)
	env := config.EnvRaw(os.Environ())

	cfg, _, _, err := config.Resolve(cli, env, nil)
	if err != nil {
		return err
	}
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}

	shellEnv := buildShellEnv(cfg)
	code, err := shellrun.Run(cfg.Shell, cfg.RootDir, shellEnv, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runShellAndTeardown hands the user an interactive shell and tears the
// cluster down once it exits. While the shell holds the terminal, it also
// watches every supervised component's process handle: a ProcessExited from
// any of them aborts the shell via SIGHUP (spec.md §7) instead of leaving it
// attached to a half-dead cluster until the user notices.
func runShellAndTeardown(ctx context.Context, cfg config.Config, sup *supervisor.Supervisor, log logging.Logger) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	abort := make(chan struct{})
	go func() {
		select {
		case name := <-sup.WatchExits(watchCtx):
			err := kubernixerr.New(kubernixerr.ProcessExited, name, fmt.Errorf("component exited unexpectedly"))
			log.Error("%v", err)
			close(abort)
		case <-watchCtx.Done():
		}
	}()

	shellEnv := buildShellEnv(cfg)
	code, err := shellrun.Run(cfg.Shell, cfg.RootDir, shellEnv, abort)
	stopWatch()
	sup.Teardown(gracePeriod)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

const gracePeriod = 10 * time.Second

func buildShellEnv(cfg config.Config) []string {
	adminKubeconfig := cfg.Paths().Kubeconfig(pki.Admin)
	extra := []string{
		"KUBECONFIG=" + adminKubeconfig,
		"CONTAINER_RUNTIME_ENDPOINT=unix://" + cfg.Paths().CrioSocket(0),
	}
	return append(os.Environ(), extra...)
}

func hermeticPathDirs(cfg config.Config) []string {
	if cfg.OverlayPath == "" {
		return nil
	}
	return []string{filepath.Join(cfg.OverlayPath, "bin")}
}

func installSignalHandler(sup *supervisor.Supervisor, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sup.Shutdown()
		cancel()
	}()
}
