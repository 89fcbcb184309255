package main

import "time"

type BenchResult struct {
	File      string
	MediaType string
	Duration  time.Duration
	// FirstByte is the time until the first streamed fragment arrived.
	FirstByte time.Duration
	Words     int
	Err       error
	Size      int64
}

type Agg struct {
	Count      int
	Failed     int
	Total      time.Duration
	FirstByte  time.Duration
	TotalBytes int64
	TotalWords int
}
