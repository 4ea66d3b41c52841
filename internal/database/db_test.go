package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/mindergas/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInstallationRoundTrip(t *testing.T) {
	db := openTestDB(t)

	inst := &models.Installation{
		Name:              "Home",
		APIKey:            "abc123",
		PostMeterReading:  true,
		PostMeterEntityID: "sensor.gas_meter",
		PostTime:          "00:30",
		UpdateStats:       true,
		UpdateTime:        "03:00",
		UpdateJitter:      15,
	}
	require.NoError(t, db.InsertInstallation(inst))
	require.NotEqual(t, uuid.Nil, inst.ID)

	got, err := db.GetInstallation(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)
	assert.Equal(t, "Home", got.Name)
	assert.Equal(t, "abc123", got.APIKey)
	assert.True(t, got.PostMeterReading)
	assert.Equal(t, "sensor.gas_meter", got.PostMeterEntityID)
	assert.False(t, got.RandomizePostTime)
	assert.Equal(t, "00:30", got.PostTime)
	assert.True(t, got.UpdateStats)
	assert.Equal(t, "03:00", got.UpdateTime)
	assert.Equal(t, 15, got.UpdateJitter)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestInsertInstallationRejectsDuplicateAPIKey(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.InsertInstallation(&models.Installation{APIKey: "abc123"}))

	err := db.InsertInstallation(&models.Installation{APIKey: "abc123"})
	assert.ErrorIs(t, err, ErrDuplicateAPIKey)

	// Keys are compared case-sensitively.
	assert.NoError(t, db.InsertInstallation(&models.Installation{APIKey: "ABC123"}))

	list, err := db.ListInstallations()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFindInstallationByAPIKey(t *testing.T) {
	db := openTestDB(t)

	inst := &models.Installation{APIKey: "abc123"}
	require.NoError(t, db.InsertInstallation(inst))

	found, err := db.FindInstallationByAPIKey("abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, inst.ID, found.ID)

	missing, err := db.FindInstallationByAPIKey("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateAndDeleteInstallation(t *testing.T) {
	db := openTestDB(t)

	inst := &models.Installation{APIKey: "abc123", PostTime: "00:30"}
	require.NoError(t, db.InsertInstallation(inst))

	inst.RandomizePostTime = true
	inst.PostTime = ""
	require.NoError(t, db.UpdateInstallation(inst))

	got, err := db.GetInstallation(inst.ID)
	require.NoError(t, err)
	assert.True(t, got.RandomizePostTime)
	assert.Empty(t, got.PostTime)

	require.NoError(t, db.InsertReading(&models.MeterReading{InstallationID: inst.ID, Date: time.Now(), Reading: 1.5, Success: true}))
	require.NoError(t, db.DeleteInstallation(inst.ID))

	_, err = db.GetInstallation(inst.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	readings, err := db.ListReadings(inst.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, readings)

	assert.ErrorIs(t, db.DeleteInstallation(inst.ID), ErrNotFound)
	assert.ErrorIs(t, db.UpdateInstallation(&models.Installation{ID: uuid.New(), APIKey: "x"}), ErrNotFound)
}

func TestReadingLog(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New()

	day := time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := &models.MeterReading{
			InstallationID: id,
			Date:           day.AddDate(0, 0, i),
			Reading:        1000 + float64(i),
			Success:        i != 1,
			CreatedAt:      day.AddDate(0, 0, i),
		}
		if !r.Success {
			r.Error = "reading must be positive"
		}
		require.NoError(t, db.InsertReading(r))
		assert.NotZero(t, r.ID)
	}

	readings, err := db.ListReadings(id, 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "2024-01-17", readings[0].Date.Format("2006-01-02"))
	assert.Equal(t, 1002.0, readings[0].Reading)
	assert.False(t, readings[1].Success)
	assert.Equal(t, "reading must be positive", readings[1].Error)

	other, err := db.ListReadings(uuid.New(), 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}
