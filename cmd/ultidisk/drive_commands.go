package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ultidisk/internal/api"
	"ultidisk/internal/drives"
)

func newDriveCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newMountCommand(ctx),
		newEjectCommand(ctx),
		newRotateCommand(ctx),
		newDrivePowerCommand(ctx),
	}
}

func newMountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mount <drive> <disk>",
		Short: "Mount a cataloged disk into drive a or b",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := drives.Parse(args[0])
			if err != nil {
				return err
			}
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				id, err := svc.ResolveDiskRef(args[1])
				if err != nil {
					return err
				}
				return svc.MountDisk(cmd.Context(), d, id)
			})
		},
	}
}

func newEjectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "eject <drive>",
		Short: "Eject the disk in drive a or b",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := drives.Parse(args[0])
			if err != nil {
				return err
			}
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				return svc.EjectDrive(cmd.Context(), d)
			})
		},
	}
}

func newRotateCommand(ctx *commandContext) *cobra.Command {
	var previous bool

	cmd := &cobra.Command{
		Use:   "rotate <drive>",
		Short: "Mount the next disk of the mounted disk's group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := drives.Parse(args[0])
			if err != nil {
				return err
			}
			direction := 1
			if previous {
				direction = -1
			}
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				res, err := svc.RotateGroup(cmd.Context(), d, direction)
				if err != nil {
					return err
				}
				if res.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "Drive %s not rotated: %s\n", strings.ToUpper(string(d)), res.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&previous, "prev", false, "Rotate backwards")
	return cmd
}

func newDrivePowerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "drive <on|off> <drive>",
		Short:     "Switch a drive on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("unknown power state %q (want on or off)", args[0])
			}
			d, err := drives.Parse(args[1])
			if err != nil {
				return err
			}
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				return svc.SetDrivePower(cmd.Context(), d, on)
			})
		},
	}
}
