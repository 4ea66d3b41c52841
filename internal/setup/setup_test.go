package setup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/database"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/pkg/models"
)

func openStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "setup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func accept(context.Context, string) error { return nil }

func TestRegister(t *testing.T) {
	db := openStore(t)

	inst, err := Register(context.Background(), db, accept, models.Installation{
		APIKey:            "abc123",
		PostMeterReading:  true,
		PostMeterEntityID: "sensor.gas_meter",
		UpdateStats:       true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, inst.ID)
	assert.Equal(t, config.DefaultPostTime, inst.PostTime)
	assert.Equal(t, config.DefaultUpdateTime, inst.UpdateTime)

	stored, err := db.GetInstallation(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored.APIKey)
}

func TestRegisterRejectsDuplicateKey(t *testing.T) {
	db := openStore(t)

	_, err := Register(context.Background(), db, accept, models.Installation{APIKey: "abc123"})
	require.NoError(t, err)

	var validated bool
	_, err = Register(context.Background(), db, func(context.Context, string) error {
		validated = true
		return nil
	}, models.Installation{APIKey: "abc123"})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
	assert.False(t, validated, "duplicate check runs before contacting MinderGas")

	list, err := db.ListInstallations()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRegisterRejectsInvalidOptions(t *testing.T) {
	db := openStore(t)

	_, err := Register(context.Background(), db, accept, models.Installation{
		APIKey:            "abc123",
		PostMeterReading:  true,
		PostMeterEntityID: "sensor.gas_meter",
		PostTime:          "00:04",
	})
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "post_time", verr.Field)
}

func TestRegisterMapsValidationErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrInvalidAuth},
		{http.StatusPaymentRequired, ErrInvalidAuth},
		{http.StatusForbidden, ErrInvalidAuth},
		{http.StatusInternalServerError, ErrCannotConnect},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			validate := ClientValidator(func(apiKey string) *mindergas.Client {
				return mindergas.NewClient(apiKey, mindergas.WithBaseURL(ts.URL), mindergas.WithHTTPClient(ts.Client()))
			})

			db := openStore(t)
			_, err := Register(context.Background(), db, validate, models.Installation{APIKey: "abc123"})
			assert.ErrorIs(t, err, tt.want)

			list, err := db.ListInstallations()
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestRegisterUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	validate := ClientValidator(func(apiKey string) *mindergas.Client {
		return mindergas.NewClient(apiKey, mindergas.WithBaseURL(url))
	})

	_, err := Register(context.Background(), openStore(t), validate, models.Installation{APIKey: "abc123"})
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.NotErrorIs(t, err, ErrInvalidAuth)
}

func TestConfigure(t *testing.T) {
	db := openStore(t)
	inst, err := Register(context.Background(), db, accept, models.Installation{
		APIKey:            "abc123",
		PostMeterReading:  true,
		PostMeterEntityID: "sensor.gas_meter",
		PostTime:          "00:45",
	})
	require.NoError(t, err)

	randomize := true
	updated, err := Configure(db, inst.ID, Options{RandomizePostTime: &randomize})
	require.NoError(t, err)
	assert.True(t, updated.RandomizePostTime)
	assert.Empty(t, updated.PostTime)

	randomize = false
	updated, err = Configure(db, inst.ID, Options{RandomizePostTime: &randomize})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPostTime, updated.PostTime)

	late := "01:01"
	_, err = Configure(db, inst.ID, Options{PostTime: &late})
	assert.Error(t, err)

	stored, err := db.GetInstallation(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPostTime, stored.PostTime)

	_, err = Configure(db, uuid.New(), Options{})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
