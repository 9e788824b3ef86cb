package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// CSVDataset reads an export of the dataset table with a header row.
// The weekdays column is optional and derived from the date when absent.
type CSVDataset struct {
	path string
	now  func() time.Time
}

var _ DatasetSource = (*CSVDataset)(nil)

// NewCSVDataset returns a source reading path on every load.
func NewCSVDataset(path string) *CSVDataset {
	return &CSVDataset{path: path, now: time.Now}
}

// LoadDataset parses the file and returns rows sorted by date.
func (c *CSVDataset) LoadDataset(ctx context.Context) (models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return models.Dataset{}, err
	}
	f, err := os.Open(c.path)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("open dataset csv: %w", err)
	}
	defer f.Close()

	rows, err := ParseCSV(f)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("%s: %w", c.path, err)
	}
	return models.Dataset{Rows: rows, FetchedAt: c.now().UTC()}, nil
}

// ParseCSV decodes dataset rows from r.
func ParseCSV(r io.Reader) ([]models.DatasetRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty dataset csv")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range DatasetColumns {
		if col == "weekdays" {
			continue
		}
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}

	var out []models.DatasetRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func parseRecord(record []string, index map[string]int) (models.DatasetRow, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(name string) (float64, error) {
		v := field(name)
		if v == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return f, nil
	}

	var row models.DatasetRow
	date, err := utils.ParseDate(field("date_analysis"))
	if err != nil {
		return row, err
	}
	row.Date = utils.Day(date)

	targets := []struct {
		name string
		dst  *float64
	}{
		{"number_of_red_alerts", &row.Red},
		{"number_of_non_treated_red_alerts", &row.UntreatedRed},
		{"number_of_orange_alerts", &row.Orange},
		{"number_of_non_treated_orange_alerts", &row.UntreatedOrange},
		{"time_presence_nurse", &row.NursePresence},
		{"time_presence_doctor", &row.DoctorPresence},
	}
	for _, t := range targets {
		if *t.dst, err = number(t.name); err != nil {
			return row, err
		}
	}

	if v := field("weekdays"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return row, fmt.Errorf("column weekdays: %w", err)
		}
		row.Weekday = w
	} else if utils.IsWeekday(row.Date) {
		row.Weekday = 1
	}
	return row, nil
}
