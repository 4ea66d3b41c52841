package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/mindergas/pkg/models"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:05", want: Clock{0, 5}},
		{in: "23:59", want: Clock{23, 59}},
		{in: "03:00:00", want: Clock{3, 0}},
		{in: " 7:30 ", want: Clock{7, 30}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInPostWindow(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"00:00", false},
		{"00:04", false},
		{"00:05", true},
		{"00:30", true},
		{"01:00", true},
		{"01:01", false},
		{"12:30", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseClock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, InPostWindow(c))
		})
	}
}

func TestValidateInstallationPostTime(t *testing.T) {
	base := models.Installation{
		APIKey:            "abc123",
		PostMeterReading:  true,
		PostMeterEntityID: "sensor.gas_meter",
		UpdateStats:       true,
		UpdateTime:        DefaultUpdateTime,
	}

	tests := []struct {
		postTime  string
		randomize bool
		ok        bool
	}{
		{postTime: "00:04", ok: false},
		{postTime: "00:05", ok: true},
		{postTime: "01:00", ok: true},
		{postTime: "01:01", ok: false},
		{postTime: "", ok: false},
		{postTime: "", randomize: true, ok: true},
		{postTime: "13:00", randomize: true, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.postTime, func(t *testing.T) {
			inst := base
			inst.PostTime = tt.postTime
			inst.RandomizePostTime = tt.randomize

			err := ValidateInstallation(inst)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "post_time", verr.Field)
		})
	}
}

func TestValidateInstallationCollectsErrors(t *testing.T) {
	err := ValidateInstallation(models.Installation{
		PostMeterReading: true,
		PostTime:         "00:30",
		UpdateStats:      true,
		UpdateTime:       "25:00",
		UpdateJitter:     -1,
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "api_key")
	assert.Contains(t, msg, "post_meter_entity_id")
	assert.Contains(t, msg, "update_time")
	assert.Contains(t, msg, "update_jitter")
}

func TestValidateInstallationRejectsPaddedKey(t *testing.T) {
	for _, key := range []string{" abc123", "abc123\n", "\tabc123 "} {
		err := ValidateInstallation(models.Installation{APIKey: key})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "%q", key)
		assert.Equal(t, "api_key", verr.Field)
	}
	assert.NoError(t, ValidateInstallation(models.Installation{APIKey: "abc 123"}))
}

func TestApplyDefaults(t *testing.T) {
	t.Run("fixed post time defaults to 00:30", func(t *testing.T) {
		inst := models.Installation{APIKey: " abc123 "}
		ApplyDefaults(&inst)
		assert.Equal(t, " abc123 ", inst.APIKey, "the key is never rewritten")
		assert.Equal(t, DefaultPostTime, inst.PostTime)
		assert.Equal(t, DefaultUpdateTime, inst.UpdateTime)
	})

	t.Run("randomized post time is cleared", func(t *testing.T) {
		inst := models.Installation{APIKey: "abc123", RandomizePostTime: true, PostTime: "00:45"}
		ApplyDefaults(&inst)
		assert.Empty(t, inst.PostTime)
	})
}
