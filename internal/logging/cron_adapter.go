// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package logging

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronAdapter implements cron.Logger on top of zerolog. Cron's routine
// scheduling chatter is logged at debug level.
type CronAdapter struct {
	logger zerolog.Logger
}

// NewCronAdapter wraps the global logger with a component field.
func NewCronAdapter(component string) *CronAdapter {
	return &CronAdapter{logger: WithComponent(component)}
}

// NewCronAdapterWithLogger wraps a specific zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCronAdapterWithLogger(logger zerolog.Logger) *CronAdapter {
	return &CronAdapter{logger: logger}
}

func (a *CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	addKeysAndValues(a.logger.Debug(), keysAndValues).Msg(msg)
}

func (a *CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	addKeysAndValues(a.logger.Error().Err(err), keysAndValues).Msg(msg)
}

func addKeysAndValues(event *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		event = event.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	return event
}

var _ cron.Logger = (*CronAdapter)(nil)
