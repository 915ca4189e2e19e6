package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ultidisk/internal/api"
	"ultidisk/internal/config"
	"ultidisk/internal/diskentry"
	"ultidisk/internal/scanner"
	"ultidisk/internal/source"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var device bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Scan folders for disk images and add them to the catalog",
		Long: "Scan walks each path for .d64, .g64, .d71, .g71, .d81 and .dnp images and adds them to the catalog.\n" +
			"Paths are local unless --device is set, in which case they are browsed on the device over FTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			src, selections, closeSrc, err := buildScanSource(ctx, cfg, device, args)
			if err != nil {
				return err
			}
			defer closeSrc()

			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				progress, done := newProgressLine(cmd.ErrOrStderr(), src.ID())
				res, err := svc.AddDisksFromScan(cmd.Context(), src, selections, progress)
				done()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res)
				}
				printAddResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&device, "device", false, "Browse the device's storage over FTP instead of the local filesystem")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	var device bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "add-file <path>",
		Short: "Add a single disk image to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !diskentry.IsDiskImagePath(args[0]) {
				return fmt.Errorf("unsupported disk image %q (want .d64, .g64, .d71, .g71, .d81 or .dnp)", args[0])
			}
			src, selections, closeSrc, err := buildScanSource(ctx, cfg, device, args)
			if err != nil {
				return err
			}
			defer closeSrc()

			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				res, err := svc.AddFile(cmd.Context(), src, selections[0].Path)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res)
				}
				printAddResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&device, "device", false, "Path is on the device's storage")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

// buildScanSource resolves CLI paths into a source and its selections.
func buildScanSource(ctx *commandContext, cfg *config.Config, device bool, args []string) (source.Source, []scanner.Selection, func(), error) {
	if device {
		ftpSrc, err := source.NewFTP(source.FTPConfigFrom(cfg), ctx.loggerValue())
		if err != nil {
			return nil, nil, nil, err
		}
		if len(args) == 0 {
			args = []string{cfg.FTP.Root}
		}
		selections := make([]scanner.Selection, 0, len(args))
		for _, arg := range args {
			p := diskentry.NormalizePath(arg)
			if diskentry.IsDiskImagePath(p) {
				selections = append(selections, scanner.File(p))
			} else {
				selections = append(selections, scanner.Dir(p))
			}
		}
		return ftpSrc, selections, func() { _ = ftpSrc.Close() }, nil
	}

	local, err := source.NewLocal("")
	if err != nil {
		return nil, nil, nil, err
	}
	if len(args) == 0 {
		args = []string{"."}
	}
	selections := make([]scanner.Selection, 0, len(args))
	for _, arg := range args {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return nil, nil, nil, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil, nil, fmt.Errorf("path does not exist: %s", expanded)
			}
			return nil, nil, nil, fmt.Errorf("inspect path: %w", err)
		}
		p, err := local.SourcePath(expanded)
		if err != nil {
			return nil, nil, nil, err
		}
		if info.IsDir() {
			selections = append(selections, scanner.Dir(p))
		} else {
			selections = append(selections, scanner.File(p))
		}
	}
	return local, selections, func() {}, nil
}

// newProgressLine rewrites a single status line on a terminal. On other
// writers progress is dropped.
func newProgressLine(w io.Writer, label string) (scanner.ProgressFunc, func()) {
	if !isTerminal(w) {
		return nil, func() {}
	}
	var (
		mu      sync.Mutex
		written bool
	)
	progress := func(processed int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\rScanning %s: %d entries", label, processed)
		written = true
	}
	done := func() {
		mu.Lock()
		defer mu.Unlock()
		if written {
			fmt.Fprintln(w)
		}
	}
	return progress, done
}

func printAddResult(w io.Writer, res api.AddResult) {
	if res.Empty {
		fmt.Fprintf(w, "No disk images found in %s\n", res.Source)
		return
	}
	fmt.Fprintf(w, "Added %d, updated %d of %d disk image(s) from %s\n", res.Added, res.Updated, res.Candidates, res.Source)
	if len(res.Groups) > 0 {
		fmt.Fprintf(w, "Groups: %s\n", strings.Join(res.Groups, ", "))
	}
}
