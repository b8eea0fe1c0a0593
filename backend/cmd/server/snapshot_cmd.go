package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"x-rigid/backend/internal/persistence"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "inspect and import body snapshots",
	}

	var headerOnly bool
	inspectCmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "print the bodies stored in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if headerOnly {
				h, err := persistence.ReadHeader(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d, created %s, %d bodies\n", h.Version, h.CreatedAt, h.Bodies)
				return nil
			}
			snap, err := persistence.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
	inspectCmd.Flags().BoolVar(&headerOnly, "header", false, "read only the header")

	var dataDir string
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "load snapshot records into the body store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := importSnapshot(cmd.Context(), args[0], dataDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d bodies\n", n)
			return nil
		},
	}
	importCmd.Flags().StringVar(&dataDir, "data", ".x-rigid", "data directory")

	cmd.AddCommand(inspectCmd, importCmd)
	return cmd
}

func printSnapshot(out io.Writer, snap persistence.SnapshotV1) error {
	bodies, err := snap.StoredBodies()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "version %d, created %s, %d bodies\n\n", snap.Header.Version, snap.Header.CreatedAt, len(bodies))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORLD\tID\tTYPE\tNAME\tPOSITION\tVELOCITY\tDRAG")
	for _, b := range bodies {
		p, v := b.Record.Position, b.Record.LinearVelocity
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t(%.2f, %.2f, %.2f)\t(%.2f, %.2f, %.2f)\t%.3f\n",
			b.World, b.Handle.ID, b.Handle.TypeID, b.Name,
			p.X, p.Y, p.Z, v.X, v.Y, v.Z, b.Record.DragCoefficient)
	}
	return w.Flush()
}

func importSnapshot(ctx context.Context, path, dataDir string) (int, error) {
	snap, err := persistence.ReadSnapshot(path)
	if err != nil {
		return 0, err
	}
	bodies, err := snap.StoredBodies()
	if err != nil {
		return 0, err
	}
	store, err := persistence.OpenStore(storePath(dataDir))
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.Save(ctx, bodies); err != nil {
		return 0, err
	}
	return len(bodies), nil
}
