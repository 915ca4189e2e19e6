package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ultidisk/internal/api"
	"ultidisk/internal/library"
)

func newDiskCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newListCommand(ctx),
		newTreeCommand(ctx),
		newFilterCommand(ctx),
		newSelectCommand(ctx),
		newDeselectCommand(ctx),
		newRenameCommand(ctx),
		newGroupCommand(ctx),
		newRemoveCommand(ctx),
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cataloged disks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				disks := svc.Disks()
				if all {
					disks = svc.AllDisks()
				}
				if asJSON {
					return writeJSON(cmd, disks)
				}
				out := cmd.OutOrStdout()
				if len(disks) == 0 {
					fmt.Fprintln(out, "No disks cataloged")
					return nil
				}
				fmt.Fprintln(out, renderTable(out, diskHeaders, diskRows(disks), nil))
				if filter := svc.Library().Filter(); filter != "" && !all {
					fmt.Fprintf(out, "Filter: %q (%d of %d)\n", filter, len(disks), svc.Library().Len())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Ignore the saved filter")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

var diskHeaders = []string{"Sel", "Name", "Group", "Drive", "ID"}

func diskRows(disks []api.Disk) [][]string {
	rows := make([][]string, 0, len(disks))
	for _, d := range disks {
		sel := ""
		if d.Selected {
			sel = "*"
		}
		rows = append(rows, []string{sel, d.Name, d.Group, strings.ToUpper(d.MountedIn), d.ID})
	}
	return rows
}

func newTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show cataloged disks by folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				out := cmd.OutOrStdout()
				roots := svc.Tree()
				if len(roots) == 0 {
					fmt.Fprintln(out, "No disks cataloged")
					return nil
				}
				for _, root := range roots {
					writeTree(out, root, 0)
				}
				return nil
			})
		},
	}
}

func writeTree(w io.Writer, n *library.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.IsDisk() {
		label := n.Name
		if n.Disk.Group != nil {
			label += " [" + *n.Disk.Group + "]"
		}
		fmt.Fprintf(w, "%s%s\n", indent, label)
		return
	}
	fmt.Fprintf(w, "%s%s/ (%d)\n", indent, n.Name, n.Count())
	for _, child := range n.Children {
		writeTree(w, child, depth+1)
	}
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "filter [text]",
		Short: "Set or clear the saved list filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				if err := svc.SetFilter(cmd.Context(), text); err != nil {
					return err
				}
				if text == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Filter cleared")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Filter set to %q (%d match(es))\n", text, len(svc.Library().Filtered()))
				}
				return nil
			})
		},
	}
}

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var all, clearAll, toggle bool

	cmd := &cobra.Command{
		Use:   "select [disk...]",
		Short: "Select disks for bulk operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && !clearAll && len(args) == 0 {
				return errors.New("name at least one disk, or use --all or --clear")
			}
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				out := cmd.OutOrStdout()
				switch {
				case clearAll:
					if err := svc.ClearSelection(cmd.Context()); err != nil {
						return err
					}
				case all:
					if _, err := svc.SelectAll(cmd.Context()); err != nil {
						return err
					}
				default:
					ids, err := resolveRefs(svc, args)
					if err != nil {
						return err
					}
					if toggle {
						for _, id := range ids {
							if _, err := svc.ToggleSelection(cmd.Context(), id); err != nil {
								return err
							}
						}
					} else if err := svc.Select(cmd.Context(), ids...); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "%d disk(s) selected\n", len(svc.Library().Selected()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Select every disk matching the saved filter")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Clear the selection")
	cmd.Flags().BoolVar(&toggle, "toggle", false, "Flip the selection state of the named disks")
	cmd.MarkFlagsMutuallyExclusive("all", "clear", "toggle")
	return cmd
}

func newDeselectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deselect <disk...>",
		Short: "Remove disks from the selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				ids, err := resolveRefs(svc, args)
				if err != nil {
					return err
				}
				if err := svc.Deselect(cmd.Context(), ids...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d disk(s) selected\n", len(svc.Library().Selected()))
				return nil
			})
		},
	}
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <disk> [name]",
		Short: "Rename a disk; omit the name to restore the file name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				id, err := svc.ResolveDiskRef(args[0])
				if err != nil {
					return err
				}
				return svc.Rename(cmd.Context(), id, name)
			})
		},
	}
}

func newGroupCommand(ctx *commandContext) *cobra.Command {
	var clearGroup bool

	cmd := &cobra.Command{
		Use:   "group <disk> [group]",
		Short: "Assign a disk to a rotation group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var group *string
			switch {
			case clearGroup:
			case len(args) == 2 && strings.TrimSpace(args[1]) != "":
				g := strings.TrimSpace(args[1])
				group = &g
			default:
				return errors.New("name a group or pass --clear")
			}
			return ctx.withService(cmd, serviceOptions{}, func(svc *api.Service) error {
				id, err := svc.ResolveDiskRef(args[0])
				if err != nil {
					return err
				}
				return svc.Regroup(cmd.Context(), id, group)
			})
		},
	}
	cmd.Flags().BoolVar(&clearGroup, "clear", false, "Remove the disk from its group")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var selected bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "rm [disk...]",
		Aliases: []string{"delete"},
		Short:   "Remove disks from the catalog, ejecting them first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !selected && len(args) == 0 {
				return errors.New("name at least one disk or use --selected")
			}
			return ctx.withService(cmd, serviceOptions{refresh: true}, func(svc *api.Service) error {
				if !selected && len(args) == 1 {
					id, err := svc.ResolveDiskRef(args[0])
					if err != nil {
						return err
					}
					res, err := svc.DeleteDisk(cmd.Context(), id)
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, api.FromDeleteResults(res))
					}
					return nil
				}

				ids := svc.Library().Selected()
				if !selected {
					var err error
					if ids, err = resolveRefs(svc, args); err != nil {
						return err
					}
				}
				if len(ids) == 0 {
					return errors.New("selection is empty")
				}
				res, err := svc.BulkDelete(cmd.Context(), ids)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromDeleteResults(res.Results...))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&selected, "selected", false, "Remove every selected disk")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func resolveRefs(svc *api.Service, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := svc.ResolveDiskRef(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
