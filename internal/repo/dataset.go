package repo

import (
	"context"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
)

// DatasetSource loads the full operations dataset ordered by date.
type DatasetSource interface {
	LoadDataset(ctx context.Context) (models.Dataset, error)
}

// DatasetColumns lists the dataset table columns in scan order.
var DatasetColumns = []string{
	"date_analysis",
	"number_of_red_alerts",
	"number_of_non_treated_red_alerts",
	"number_of_orange_alerts",
	"number_of_non_treated_orange_alerts",
	"weekdays",
	"time_presence_nurse",
	"time_presence_doctor",
}
