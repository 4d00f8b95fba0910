package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stuartshay/geostore/internal/geo"
)

func newMetaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write location metadata",
	}
	cmd.AddCommand(newMetaGetCmd(a), newMetaSetCmd(a), newMetaDeleteCmd(a))
	return cmd
}

func parseLocationID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: location id %q", geo.ErrInvalidArgument, s)
	}
	return id, nil
}

func newMetaGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <location-id> [key]",
		Short: "Show one metadata value, or all of them",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocationID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if len(args) == 2 {
				v, err := a.store.GetLocationMeta(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, v)
			}
			values, err := a.store.ListLocationMeta(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, values)
		},
	}
}

func newMetaSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <location-id> <key> <json-value>",
		Short: "Store a metadata value",
		Long: "Store a metadata value. The value is parsed as JSON when it is valid\n" +
			"JSON and stored as a plain string otherwise.",
		Example: `  geoctl meta set 3 zoom 12
  geoctl meta set 3 tags '["cafe","wifi"]'
  geoctl meta set 3 note "ring the bell"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocationID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}

			values := map[string]geo.MetaValue{args[1]: geo.DecodeMeta(args[2])}
			ids, err := a.store.SaveLocationMeta(cmd.Context(), id, values)
			if err != nil {
				return err
			}
			if ids == nil {
				return fmt.Errorf("location %d: %w", id, geo.ErrNotFound)
			}
			return printJSON(cmd, map[string]any{"location_id": id, "meta_id": ids[0]})
		},
	}
}

func newMetaDeleteCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete <location-id> [key...]",
		Short: "Delete metadata keys, or every key with --all",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocationID(args[0])
			if err != nil {
				return err
			}
			keys := args[1:]
			if len(keys) == 0 && !all {
				return fmt.Errorf("%w: name at least one key or pass --all", geo.ErrInvalidArgument)
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.store.DeleteLocationMeta(cmd.Context(), id, keys...); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"location_id": id, "deleted": keys})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every metadata key of the location")
	return cmd
}
