package main

import (
	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/setup"
	"github.com/jgoulah/mindergas/pkg/models"
)

// optionFlags are the installation options shared by setup and configure
type optionFlags struct {
	name              string
	postMeterReading  bool
	meterEntity       string
	randomizePostTime bool
	postTime          string
	updateStats       bool
	updateTime        string
	updateJitter      int
}

func (o *optionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.name, "name", "", "Display name for the installation")
	f.BoolVar(&o.postMeterReading, "post-meter-reading", false, "Post the daily meter reading to MinderGas")
	f.StringVar(&o.meterEntity, "meter-entity", "", "Home Assistant entity holding the meter reading (e.g. sensor.gas_meter)")
	f.BoolVar(&o.randomizePostTime, "randomize-post-time", false, "Post at a random moment between 00:05 and 01:00")
	f.StringVar(&o.postTime, "post-time", "", "Time to post the meter reading, HH:MM between 00:05 and 01:00 (default 00:30)")
	f.BoolVar(&o.updateStats, "update-stats", false, "Refresh usage statistics once a day")
	f.StringVar(&o.updateTime, "update-time", "", "Time to refresh statistics, HH:MM (default 03:00)")
	f.IntVar(&o.updateJitter, "update-jitter", 0, "Random delay in minutes added to the refresh time")
}

// installation builds a new installation from the flag values
func (o *optionFlags) installation(apiKey string) models.Installation {
	return models.Installation{
		Name:              o.name,
		APIKey:            apiKey,
		PostMeterReading:  o.postMeterReading,
		PostMeterEntityID: o.meterEntity,
		RandomizePostTime: o.randomizePostTime,
		PostTime:          o.postTime,
		UpdateStats:       o.updateStats,
		UpdateTime:        o.updateTime,
		UpdateJitter:      o.updateJitter,
	}
}

// changed returns only the options explicitly set on the command line
func (o *optionFlags) changed(cmd *cobra.Command) setup.Options {
	f := cmd.Flags()
	var opts setup.Options
	if f.Changed("name") {
		opts.Name = &o.name
	}
	if f.Changed("post-meter-reading") {
		opts.PostMeterReading = &o.postMeterReading
	}
	if f.Changed("meter-entity") {
		opts.PostMeterEntityID = &o.meterEntity
	}
	if f.Changed("randomize-post-time") {
		opts.RandomizePostTime = &o.randomizePostTime
	}
	if f.Changed("post-time") {
		opts.PostTime = &o.postTime
	}
	if f.Changed("update-stats") {
		opts.UpdateStats = &o.updateStats
	}
	if f.Changed("update-time") {
		opts.UpdateTime = &o.updateTime
	}
	if f.Changed("update-jitter") {
		opts.UpdateJitter = &o.updateJitter
	}
	return opts
}
