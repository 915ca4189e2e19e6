package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ultidisk/internal/api"
	"ultidisk/internal/catalogdb"
	"ultidisk/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show drive state and catalog summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				status := svc.Status()
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Device:   %s\n", status.DeviceID)
				fmt.Fprintf(out, "Disks:    %d (%d selected)\n", status.Disks, status.Selected)
				if status.Filter != "" {
					fmt.Fprintf(out, "Filter:   %q\n", status.Filter)
				}
				fmt.Fprintln(out)
				writeDrives(out, status.Drives)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func writeDrives(out io.Writer, views []api.Drive) {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		label := v.Label
		switch {
		case !v.Mounted:
			label = "(empty)"
		case v.UnknownImage:
			label += " (not cataloged)"
		}
		bus := ""
		if v.BusID > 0 {
			bus = strconv.Itoa(v.BusID)
		}
		rows = append(rows, []string{strings.ToUpper(v.Drive), yesNo(v.Enabled), bus, label, v.LastError})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Drive", "On", "Bus", "Disk", "Last error"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
}

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices with a stored catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalogdb.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			devices, err := store.Devices(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No catalogs stored")
				return nil
			}
			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				rows = append(rows, []string{d.DeviceID, strconv.Itoa(d.Disks), d.UpdatedAt.Local().Format("2006-01-02 15:04")})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Device", "Disks", "Updated"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the device API and FTP access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				mark := "ok  "
				if !r.Passed {
					mark = "FAIL"
					failed++
				}
				fmt.Fprintf(out, "[%s] %-16s %s\n", mark, r.Name, r.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}
