package usecase

import (
	"context"
	"time"

	"SoccerSentiment/internal/ports"
	"SoccerSentiment/internal/summarize"
)

// SummarySchedule binds the summarization pass to a recurring driver. The
// pass runs synchronously inside the job, so consecutive invocations cannot
// overlap.
type SummarySchedule struct {
	driver     ports.Scheduler
	summarizer *summarize.Summarizer
}

// NewSummarySchedule returns a helper to start/stop the recurring pass.
func NewSummarySchedule(driver ports.Scheduler, summarizer *summarize.Summarizer) *SummarySchedule {
	return &SummarySchedule{driver: driver, summarizer: summarizer}
}

// Start registers the summarizer with the provided scheduler.
func (s *SummarySchedule) Start(ctx context.Context) error {
	if s.driver == nil || s.summarizer == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.summarizer.Run(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *SummarySchedule) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
