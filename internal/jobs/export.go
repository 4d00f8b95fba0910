package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/queue"
)

var exportHeader = []string{
	"location_id", "object_type", "object_id", "status", "latitude", "longitude",
	"title", "address", "countrycode", "updated", "distance_km",
}

// export writes the selected locations with their distance from the
// origin to a CSV file followed by a summary
func (r *Runner) export(ctx context.Context, jobID string, req ExportRequest) (*queue.JobResult, error) {
	locs, err := r.store.ListLocations(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	points := make([]calculator.Point, len(locs))
	for i, loc := range locs {
		points[i] = calculator.Point{Latitude: loc.Lat, Longitude: loc.Lng}
	}
	metrics := calculator.CalculateMetrics(req.Origin, points)

	path, err := r.writeCSV(jobID, req, locs, metrics)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("csv_path", path).
		Int("total_locations", metrics.TotalLocations).
		Float64("max_distance_km", metrics.MaxDistanceKM).
		Msg("Locations exported")

	return &queue.JobResult{
		Path:            path,
		TotalLocations:  metrics.TotalLocations,
		TotalDistanceKM: metrics.TotalDistanceKM,
		MaxDistanceKM:   metrics.MaxDistanceKM,
		MinDistanceKM:   metrics.MinDistanceKM,
		AvgDistanceKM:   metrics.AvgDistanceKM,
	}, nil
}

// exportFilename names the file after the exported object type and job
func exportFilename(jobID string, t geo.ObjectType) string {
	scope := "all"
	if t != 0 {
		scope = t.Plural()
	}
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("locations_%s_%s.csv", scope, short)
}

func (r *Runner) writeCSV(jobID string, req ExportRequest, locs []geo.Location, metrics calculator.DistanceMetrics) (path string, err error) {
	if err := os.MkdirAll(r.exportPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path = filepath.Join(r.exportPath, exportFilename(jobID, req.Filter.Type))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close CSV file: %w", closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(exportHeader); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, loc := range locs {
		distance := calculator.Haversine(req.Origin.Latitude, req.Origin.Longitude, loc.Lat, loc.Lng)
		row := []string{
			strconv.FormatInt(loc.ID, 10),
			loc.Object.Type.String(),
			strconv.FormatInt(loc.Object.ID, 10),
			string(loc.Status),
			fmt.Sprintf("%.6f", loc.Lat),
			fmt.Sprintf("%.6f", loc.Lng),
			loc.Title,
			loc.Address.String(),
			loc.Address.CountryCode,
			loc.Updated.Format(time.RFC3339),
			fmt.Sprintf("%.2f", distance),
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	summary := [][]string{
		{},
		{"Summary"},
		{"Origin", fmt.Sprintf("%.6f,%.6f", req.Origin.Latitude, req.Origin.Longitude)},
		{"Total Locations", strconv.Itoa(metrics.TotalLocations)},
		{"Total Distance (km)", fmt.Sprintf("%.2f", metrics.TotalDistanceKM)},
		{"Max Distance (km)", fmt.Sprintf("%.2f", metrics.MaxDistanceKM)},
		{"Min Distance (km)", fmt.Sprintf("%.2f", metrics.MinDistanceKM)},
		{"Average Distance (km)", fmt.Sprintf("%.2f", metrics.AvgDistanceKM)},
	}
	if err := writer.WriteAll(summary); err != nil {
		return "", fmt.Errorf("failed to write CSV summary: %w", err)
	}
	return path, nil
}
