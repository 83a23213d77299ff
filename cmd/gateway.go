package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
	"github.com/scarlettdetekelala/hermes-agent/internal/supervisor"
)

const cronTickInterval = time.Minute

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Control the gateway process",
}

var gatewayRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway in the foreground (blocks until interrupted)",
	RunE:  runGatewayForeground,
}

var gatewayStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway as a background process",
	RunE:  runGatewayStart,
}

var gatewayStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running background gateway process",
	RunE:  runGatewayStop,
}

var gatewayRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop then start the background gateway process",
	RunE: func(c *cobra.Command, args []string) error {
		if err := runGatewayStop(c, args); err != nil && !errors.Is(err, errNotRunning) {
			return err
		}
		return runGatewayStart(c, args)
	},
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the background gateway process is running",
	RunE:  runGatewayStatus,
}

func init() {
	gatewayCmd.AddCommand(gatewayRunCmd, gatewayStartCmd, gatewayStopCmd, gatewayRestartCmd, gatewayStatusCmd)
}

var errNotRunning = errors.New("gateway is not running")

// echoConversation is a stand-in run_conversation (spec §6: the agent
// engine is an opaque external collaborator this core never implements)
// so the gateway's own plumbing — scheduling, reset, delivery, cron — is
// exercisable standalone. A real deployment supplies its own
// agent.RunConversation wired in here instead.
func echoConversation(_ context.Context, prompt, _ string, _ []session.Entry, _ *scheduler.InterruptHandle) (agent.Response, error) {
	return agent.Response{FinalResponse: prompt, Completed: true}, nil
}

// runGatewayForeground wires and runs the supervisor directly, blocking
// until SIGINT/SIGTERM (spec §4.J: "loads config, instantiates adapters,
// wires G/H/F/I, handles shutdown").
func runGatewayForeground(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup, err := supervisor.New(ctx, cfg, echoConversation)
	if err != nil {
		return fmt.Errorf("initializing gateway: %w", err)
	}

	slog.Info("gateway starting", "root", cfg.Root, "platforms", cfg.GetConnectedPlatforms())

	runErr := sup.Run(ctx, cronTickInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway shutdown encountered errors", "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return interruptedError{}
	}
	return runErr
}

func runGatewayStart(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if pid, alive := readLivePID(cfg); alive {
		return fmt.Errorf("gateway already running (pid %d)", pid)
	}

	if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	args := []string{self, "gateway", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	proc, err := os.StartProcess(self, args, &os.ProcAttr{
		Files: []*os.File{os.Stdin, logFile, logFile},
		Dir:   filepath.Dir(self),
	})
	if err != nil {
		return fmt.Errorf("starting background process: %w", err)
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return fmt.Errorf("creating root directory: %w", err)
	}
	if err := os.WriteFile(pidFilePath(cfg), []byte(strconv.Itoa(proc.Pid)), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}

	fmt.Fprintf(c.OutOrStdout(), "gateway started (pid %d), logs at %s\n", proc.Pid, logFilePath(cfg))
	return nil
}

func runGatewayStop(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pid, alive := readLivePID(cfg)
	if !alive {
		os.Remove(pidFilePath(cfg))
		return errNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	for i := 0; i < 50; i++ {
		if _, stillAlive := readLivePID(cfg); !stillAlive {
			os.Remove(pidFilePath(cfg))
			fmt.Fprintf(c.OutOrStdout(), "gateway stopped (pid %d)\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("gateway (pid %d) did not stop within timeout", pid)
}

func runGatewayStatus(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pid, alive := readLivePID(cfg); alive {
		fmt.Fprintf(c.OutOrStdout(), "gateway running (pid %d)\n", pid)
		return nil
	}
	fmt.Fprintln(c.OutOrStdout(), "gateway not running")
	return errNotRunning
}

// readLivePID reads the pid file and reports whether that process is
// still alive, probed with signal 0 — the portable "does this pid exist
// and am I allowed to signal it" check that sends nothing.
func readLivePID(cfg *config.Config) (int, bool) {
	data, err := os.ReadFile(pidFilePath(cfg))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}
