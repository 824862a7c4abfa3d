package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashankpritam/PitchCompare/player"
)

func (a *app) newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Play a recording through the default output device",
		Args: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list-devices"); list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list-devices"); list {
				devices, err := player.OutputDevices()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Available audio output devices:")
				for i, device := range devices {
					fmt.Fprintf(out, "[%d] %s\n", i, device.Name)
					fmt.Fprintf(out, "    Max Output Channels: %d\n", device.MaxOutputChannels)
					fmt.Fprintf(out, "    Default Sample Rate: %f\n", device.DefaultSampleRate)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return player.Play(ctx, args[0])
		},
	}
	cmd.Flags().Bool("list-devices", false, "List available audio output devices")
	return cmd
}
