package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/repo"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

type seedFlags struct {
	days        int
	seed        uint64
	databaseURL string
	migrations  string
}

func main() {
	var flags seedFlags
	cmd := &cobra.Command{
		Use:   "seed-dataset",
		Short: "Generate a synthetic dataset ending yesterday, as CSV on stdout or into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := synthesize(flags.days, flags.seed, time.Now())
			if flags.databaseURL == "" {
				return writeCSV(cmd, rows)
			}
			return insert(cmd.Context(), flags, rows)
		},
	}
	f := cmd.Flags()
	f.IntVar(&flags.days, "days", 400, "Number of days to generate")
	f.Uint64Var(&flags.seed, "seed", 42, "Random seed")
	f.StringVar(&flags.databaseURL, "database-url", "", "Insert into this database instead of printing CSV")
	f.StringVar(&flags.migrations, "migrations", "migrations", "Migrations directory applied before inserting")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// synthesize produces weekly-seasonal alert counts with staffing loosely following them.
func synthesize(days int, seed uint64, now time.Time) []models.DatasetRow {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	last := utils.AddDays(now, -1)
	rows := make([]models.DatasetRow, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := utils.AddDays(last, -i)
		weekday := 0
		if utils.IsWeekday(d) {
			weekday = 1
		}
		season := 1 + 0.2*math.Sin(2*math.Pi*float64(d.YearDay())/365)
		red := math.Round((8 + 4*float64(weekday)) * season * (0.8 + 0.4*rng.Float64()))
		orange := math.Round((20 + 8*float64(weekday)) * season * (0.8 + 0.4*rng.Float64()))
		rows = append(rows, models.DatasetRow{
			Date:            d,
			Red:             red,
			UntreatedRed:    math.Round(red * 0.1 * rng.Float64()),
			Orange:          orange,
			UntreatedOrange: math.Round(orange * 0.15 * rng.Float64()),
			Weekday:         weekday,
			NursePresence:   math.Round(60 + 3.5*red + 1.2*orange + 15*float64(weekday) + 5*rng.NormFloat64()),
			DoctorPresence:  math.Round(15 + 0.9*red + 0.3*orange + 6*float64(weekday) + 2*rng.NormFloat64()),
		})
	}
	return rows
}

func writeCSV(cmd *cobra.Command, rows []models.DatasetRow) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write(repo.DatasetColumns); err != nil {
		return err
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range rows {
		record := []string{
			utils.FormatDate(r.Date),
			num(r.Red), num(r.UntreatedRed), num(r.Orange), num(r.UntreatedOrange),
			strconv.Itoa(r.Weekday),
			num(r.NursePresence), num(r.DoctorPresence),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func insert(ctx context.Context, flags seedFlags, rows []models.DatasetRow) error {
	logger := utils.NewLogger("info", false)
	if err := repo.Migrate(flags.databaseURL, flags.migrations); err != nil {
		return err
	}
	pool, err := repo.OpenPool(ctx, flags.databaseURL, repo.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repo.NewPostgresDataset(pool).InsertRows(ctx, rows); err != nil {
		return fmt.Errorf("seed dataset: %w", err)
	}
	logger.Info("dataset seeded", slog.Int("rows", len(rows)),
		slog.String("first", utils.FormatDate(rows[0].Date)),
		slog.String("last", utils.FormatDate(rows[len(rows)-1].Date)))
	return nil
}
