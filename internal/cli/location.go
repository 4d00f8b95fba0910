package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/store"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show the location attached to an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := geo.ParseRef(args[0], args[1])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			loc, err := a.store.GetLocation(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, loc)
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		data       store.LocationData
		status     string
		objectDate string
	)

	cmd := &cobra.Command{
		Use:   "save <type> <id>",
		Short: "Create or replace the location of an object",
		Example: `  geoctl save post 42 --lat 51.5074 --lng -0.1278 --title London --city London --countrycode GB
  geoctl save user 7 --lat 40.7128 --lng -74.0060 --status private`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := geo.ParseRef(args[0], args[1])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
				return fmt.Errorf("%w: --lat and --lng are required", geo.ErrInvalidCoordinates)
			}
			if data.Status, err = geo.ParseStatus(status); err != nil {
				return err
			}
			if objectDate != "" {
				if data.ObjectDate, err = time.Parse(time.RFC3339, objectDate); err != nil {
					return fmt.Errorf("%w: object date %q", geo.ErrInvalidArgument, objectDate)
				}
			}

			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			id, err := a.store.SaveLocation(cmd.Context(), data, ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"location_id": id, "object": ref})
		},
	}

	f := cmd.Flags()
	f.Float64Var(&data.Lat, "lat", 0, "latitude in decimal degrees")
	f.Float64Var(&data.Lng, "lng", 0, "longitude in decimal degrees")
	f.StringVar(&data.Title, "title", "", "location title")
	f.StringVar(&data.Address.Street, "street", "", "street address")
	f.StringVar(&data.Address.Area, "area", "", "area or neighbourhood")
	f.StringVar(&data.Address.City, "city", "", "city")
	f.StringVar(&data.Address.District, "district", "", "district")
	f.StringVar(&data.Address.State, "state", "", "state or region")
	f.StringVar(&data.Address.Postcode, "postcode", "", "postal code")
	f.StringVar(&data.Address.Country, "country", "", "country name")
	f.StringVar(&data.Address.CountryCode, "countrycode", "", "two-letter country code")
	f.StringVar(&status, "status", "", "public or private (default: from the host object)")
	f.StringVar(&objectDate, "object-date", "", "object date in RFC 3339 (default: from the host object)")

	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete the location of an object with its metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := geo.ParseRef(args[0], args[1])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			id, err := a.store.DeleteLocation(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"location_id": id, "deleted": true})
		},
	}
}

func newTrashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <type> <id>",
		Short: "Mark the location of an object private",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := geo.ParseRef(args[0], args[1])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			id, err := a.store.TrashLocation(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"location_id": id, "status": geo.StatusPrivate})
		},
	}
}
