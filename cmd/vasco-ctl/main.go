package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/st-keller/introspection-agent/command"
	"github.com/st-keller/introspection-agent/controller"
)

var (
	flagSocketDir string
	flagTimeout   time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vasco-ctl",
		Short: "Send commands to processes running the Vasco agent",
		Long: `vasco-ctl finds processes that expose a Vasco command socket and
sends them commands. Run without arguments to list attachable processes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagSocketDir, "socket-dir", "", "Directory holding command sockets (or VASCO_CTL_SOCKET_DIR)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Connect and write timeout (or VASCO_CTL_TIMEOUT)")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(uiCmd())
	rootCmd.AddCommand(commandsCmd())
	return rootCmd
}

// loadConfig merges flags over the config file and environment.
func loadConfig() (controller.Config, error) {
	cfg, err := controller.LoadConfig()
	if err != nil {
		return controller.Config{}, err
	}
	if flagSocketDir != "" {
		cfg.SocketDir = flagSocketDir
	}
	if flagTimeout > 0 {
		cfg.Timeout = flagTimeout
	}
	return cfg, nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List attachable processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	endpoints, err := controller.Discover(cfg.SocketDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(endpoints) == 0 {
		fmt.Fprintf(out, "No Vasco sockets found in %s\n", cfg.SocketDir)
		return nil
	}
	for _, ep := range endpoints {
		fmt.Fprintf(out, "%-24s %s\n", ep.Process, ep.Path)
	}
	return nil
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <process|socket> <command>",
		Short: "Send one command",
		Example: `  vasco-ctl send gallery print_windows
  vasco-ctl send /tmp/gallery-IpcPipe quit`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := controller.Resolve(cfg.SocketDir, args[0])
			if err := controller.Send(cmd.Context(), path, args[1], cfg.Timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", args[1], path)
			return nil
		},
	}
}

func uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui <process|socket>",
		Short: "Pick commands interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := controller.Resolve(cfg.SocketDir, args[0])
			send := func(ctx context.Context, name string) error {
				return controller.Send(ctx, path, name, cfg.Timeout)
			}
			return controller.RunUI(cmd.Context(), path, command.DefaultNames(), send)
		},
	}
}

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands an agent accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range command.DefaultNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
