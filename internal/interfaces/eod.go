package interfaces

import "time"

// EodSummarizer generates daily CSV summaries from the trade log. Perps
// trade around the clock, so a "day" is the UTC calendar date.
type EodSummarizer interface {
	SummarizeDay(t time.Time) (csvPath string, err error)
	SummarizeToday() (csvPath string, err error)
	// ShouldRunNow reports whether yesterday's summary is due: the UTC day
	// has rolled over and the file does not exist yet.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
