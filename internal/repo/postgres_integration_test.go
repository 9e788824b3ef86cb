//go:build integration

package repo

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("forecast"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("could not get connection string: %v", err)
	}
	if err := Migrate(connStr, "../../migrations"); err != nil {
		log.Fatalf("could not run migrations: %v", err)
	}
	testPool, err = OpenPool(ctx, connStr, PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatalf("could not open pool: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("could not terminate postgres container: %v", err)
	}
	os.Exit(code)
}

func TestPostgresDatasetRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := NewPostgresDataset(testPool)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	rows := []models.DatasetRow{
		{Date: day.AddDate(0, 0, 1), Red: 9, UntreatedRed: 1, Orange: 27, UntreatedOrange: 3, Weekday: 1, NursePresence: 132, DoctorPresence: 31},
		{Date: day, Red: 12, UntreatedRed: 2, Orange: 30, UntreatedOrange: 4, Weekday: 1, NursePresence: 140, DoctorPresence: 35},
	}
	require.NoError(t, source.InsertRows(ctx, rows))

	ds, err := source.LoadDataset(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)

	assert.Equal(t, day, ds.Rows[0].Date)
	assert.Equal(t, 12.0, ds.Rows[0].Red)
	assert.Equal(t, 31.0, ds.Rows[1].DoctorPresence)
	assert.False(t, ds.FetchedAt.IsZero())

	rows[0].Red = 10
	require.NoError(t, source.InsertRows(ctx, rows[:1]))
	ds, err = source.LoadDataset(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, 10.0, ds.Rows[1].Red)
}
