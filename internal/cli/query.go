package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/proximity"
)

func newNearbyCmd(a *app) *cobra.Command {
	var (
		lat, lng       float64
		distance       string
		limit          int
		includePrivate bool
	)

	cmd := &cobra.Command{
		Use:     "nearby <type>",
		Short:   "List locations of a type within a distance, nearest first",
		Example: `  geoctl nearby posts --lat 51.5 --lng -0.12 --distance "10 miles" --limit 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := geo.ParseObjectType(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
				return fmt.Errorf("%w: --lat and --lng are required", geo.ErrInvalidCoordinates)
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			locs, err := a.engine.Nearby(cmd.Context(), proximity.Query{
				Type:           typ,
				Lat:            lat,
				Lng:            lng,
				Distance:       distance,
				Limit:          limit,
				IncludePrivate: includePrivate,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, locs)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&lat, "lat", 0, "latitude of the query point")
	f.Float64Var(&lng, "lng", 0, "longitude of the query point")
	f.StringVar(&distance, "distance", "", "search radius such as 50km or \"10 miles\" (default: configured default distance)")
	f.IntVar(&limit, "limit", 0, "maximum number of results (0: no limit)")
	f.BoolVar(&includePrivate, "include-private", false, "include private locations")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "convert <distance> | <amount> <from>",
		Short: "Convert a distance between units",
		Example: `  geoctl convert 10km --to mi
  geoctl convert 26.2 miles --to km`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := calculator.ParseDistance(strings.Join(args, " "))
			if err != nil {
				return err
			}
			converted, err := d.In(to)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"amount": converted, "unit": to})
		},
	}
	cmd.Flags().StringVar(&to, "to", "km", "target unit")
	return cmd
}

func newDistanceCmd() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:     "distance <lat,lng> <lat,lng> [lat,lng...]",
		Short:   "Measure a path of points along great circles",
		Example: `  geoctl distance 51.5074,-0.1278 48.8566,2.3522 --unit mi`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]calculator.Point, 0, len(args))
			for _, arg := range args {
				p, err := parsePoint(arg)
				if err != nil {
					return err
				}
				points = append(points, p)
			}
			segments, total, err := calculator.PathDistance(points, unit)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"segments": segments, "total": total, "unit": unit})
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "km", "unit of the reported distances")
	return cmd
}

// parsePoint reads "lat,lng"
func parsePoint(s string) (calculator.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return calculator.Point{}, fmt.Errorf("%w: %q is not lat,lng", geo.ErrInvalidCoordinates, s)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err1 != nil || err2 != nil {
		return calculator.Point{}, fmt.Errorf("%w: %q is not lat,lng", geo.ErrInvalidCoordinates, s)
	}
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return calculator.Point{}, err
	}
	return calculator.Point{Latitude: lat, Longitude: lng}, nil
}
