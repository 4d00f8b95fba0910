package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/jobs"
	"github.com/stuartshay/geostore/internal/queue"
	"github.com/stuartshay/geostore/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the location tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"migrated": true, "driver": a.db.Dialect()})
		},
	}
}

// filterFlags are the location filter flags shared by export and purge
type filterFlags struct {
	objectType string
	status     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.objectType, "type", "", "only locations of this object type")
	cmd.Flags().StringVar(&f.status, "status", "", "only public or private locations")
}

func (f *filterFlags) filter() (store.Filter, error) {
	var (
		filter store.Filter
		err    error
	)
	if f.objectType != "" {
		if filter.Type, err = geo.ParseObjectType(f.objectType); err != nil {
			return store.Filter{}, err
		}
	}
	if filter.Status, err = geo.ParseStatus(f.status); err != nil {
		return store.Filter{}, err
	}
	return filter, nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		ff       filterFlags
		lat, lng float64
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write locations to CSV with distances from an origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			req := jobs.ExportRequest{Filter: filter, Origin: calculator.Point{Latitude: lat, Longitude: lng}}
			if err := geo.ValidateCoordinates(lat, lng); err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if dir == "" {
				dir = a.v.GetString(cfgKeyExportPath)
			}
			result, err := runJob(cmd.Context(), jobs.NewRunner(a.store, dir), jobs.KindExport, req.Params())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	ff.register(cmd)
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the origin")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the origin")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: configured export path)")
	return cmd
}

func newPurgeCmd(a *app) *cobra.Command {
	var (
		ff  filterFlags
		all bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every location matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			if filter.Type == 0 && filter.Status == "" && !all {
				return fmt.Errorf("%w: pass --type, --status or --all", geo.ErrInvalidArgument)
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			n, err := a.store.PurgeLocations(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"deleted": n})
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "purge locations of every type")
	return cmd
}

// runJob runs one maintenance job in the foreground with the same
// processor the server's queue uses
func runJob(ctx context.Context, runner *jobs.Runner, kind queue.Kind, params map[string]string) (*queue.JobResult, error) {
	start := time.Now()
	job := &queue.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Params:    params,
		Status:    queue.StatusProcessing,
		QueuedAt:  start,
		StartedAt: &start,
	}
	result, err := runner.Process(ctx, job)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("job returned no result")
	}
	return result, nil
}
