package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	spkagent "github.com/spknetwork/spk-agent"
	"github.com/spknetwork/spk-agent/internal/logger"
)

func buildRoot() *cobra.Command {
	serveFlags := &ServeFlags{}
	clientFlags := &ClientFlags{}
	pinFlags := &PinFlags{}
	unpinFlags := &PinFlags{}
	challengeFlags := &ChallengeFlags{}

	root := &cobra.Command{
		Use:           "spk-agent",
		Short:         "Local supervisor for an SPK storage node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		createServeCommand(serveFlags),
		createStatusCommand(clientFlags),
		createPinsCommand(clientFlags),
		createPinCommand(pinFlags),
		createUnpinCommand(unpinFlags),
		createEarningsCommand(clientFlags),
		createChallengeCommand(challengeFlags),
		createVersionCommand(),
	)
	return root
}

func createServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the node daemon and the control-plane API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "", "path to agent TOML config")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "override the API listen address")
	cmd.Flags().BoolVar(&flags.NoDaemon, "no-daemon", false, "serve the API without spawning the node daemon")
	return cmd
}

func runServe(flags *ServeFlags) error {
	fc, err := spkagent.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Listen != "" {
		fc.Listen = flags.Listen
	}
	logger.Setup(slog.LevelInfo)

	if err := spkagent.RegisterMetricsDefault(); err != nil {
		return err
	}
	if fc.Metrics.Enabled {
		go func() {
			if err := spkagent.ServeMetrics(fc.Metrics.Listen); err != nil {
				slog.Error("metrics server exited", "err", err)
			}
		}()
	}

	agent, err := spkagent.New(fc)
	if err != nil {
		return err
	}
	defer func() { _ = agent.Close() }()

	if !flags.NoDaemon {
		if err := agent.Initialize(); err != nil {
			return err
		}
		if err := agent.StartDaemon(); err != nil {
			return err
		}
	}

	srv, err := agent.NewHTTPServer(fc.Listen, fc.BasePath)
	if err != nil {
		return err
	}
	slog.Info("agent serving", "listen", fc.Listen, "base_path", fc.BasePath, "version", spkagent.Version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	_ = srv.Close()
	return nil
}

func createStatusCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running agent's node status",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			st, err := c.GetStatus()
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createPinsCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pins",
		Short: "List pinned CIDs",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			pins, err := c.GetPins()
			if err != nil {
				return err
			}
			return printJSON(pins)
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createPinCommand(flags *PinFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin <cid>",
		Short: "Pin a CID on the supervised node",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			if err := c.Pin(args[0], flags.Name); err != nil {
				return err
			}
			fmt.Printf("pinned %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "human-readable label for the pin")
	addClientFlags(cmd, &flags.ClientFlags)
	return cmd
}

func createUnpinCommand(flags *PinFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpin <cid>",
		Short: "Remove a pin from the supervised node",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			if err := c.Unpin(args[0]); err != nil {
				return err
			}
			fmt.Printf("unpinned %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, &flags.ClientFlags)
	return cmd
}

func createEarningsCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "earnings",
		Short: "Show the earnings summary",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			e, err := c.GetEarnings()
			if err != nil {
				return err
			}
			return printJSON(e)
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createChallengeCommand(flags *ChallengeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge <cid>",
		Short: "Answer a storage-proof challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			indices := make([]uint64, 0, len(flags.Indices))
			for _, i := range flags.Indices {
				if i < 0 {
					return fmt.Errorf("block index %d is negative", i)
				}
				indices = append(indices, uint64(i))
			}
			c := NewAPIClient(flags.APIUrl, flags.APITimeout)
			res, err := c.Challenge(args[0], flags.Salt, indices)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&flags.Salt, "salt", "", "challenge salt")
	cmd.Flags().Int64SliceVar(&flags.Indices, "blocks", nil, "block indices to prove, in order")
	addClientFlags(cmd, &flags.ClientFlags)
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(spkagent.Version)
		},
	}
}

func addClientFlags(cmd *cobra.Command, flags *ClientFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "agent API base URL")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 0, "agent API request timeout")
}
