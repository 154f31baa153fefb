/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// package reporter is used to report on the progress of long merge runs.

package reporter

import (
	"fmt"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
)

const nanosecondsInSecond = 1000000000

// Reporter can be used to output how a merge run is progressing: how many
// files have been merged, how many rows they held, and the merge rate.
type Reporter struct {
	operation       string       // the name of the operation, output in Report().
	logger          log15.Logger // where your reports will be logged to.
	currentDuration time.Duration
	totalDuration   time.Duration
	failedDuration  time.Duration
	currentFiles    int64
	totalFiles      int64
	failedFiles     int64
	currentRows     int64
	totalRows       int64
	enabled         bool
	started         bool
	stopCh          chan struct{}
	doneCh          chan struct{}
	sync.Mutex
}

// New returns a reporter that will log the progress of operation to logger.
func New(operation string, logger log15.Logger) *Reporter {
	return &Reporter{
		operation: operation,
		logger:    logger,
	}
}

// Enable will cause future TimeFileMerge() calls to time the merge. This is
// so that if not enabled, you can have TimeFileMerge() calls throughout your
// code and it won't be expensive since they will do nothing until you chose
// to Enable() the reporter. NB: this is NOT thread safe.
func (r *Reporter) Enable() {
	r.enabled = true
}

// TimeFileMerge, if Enable() has not yet been called, will simply call your
// given func and return its results. If Enable() has been called, it will
// also time how long your func takes to run and add the row count it returns
// to the running totals, so that Report() can report progress.
func (r *Reporter) TimeFileMerge(f func() (int, error)) (int, error) {
	if !r.enabled {
		return f()
	}

	t := time.Now()
	rows, err := f()
	d := time.Since(t)

	r.Lock()
	defer r.Unlock()

	if err != nil {
		r.failedFiles++
		r.failedDuration += d
	} else {
		r.currentFiles++
		r.currentRows += int64(rows)
		r.currentDuration += d
	}

	return rows, err
}

// Report outputs progress made since the last Report() call. Files that
// failed to merge are not included in these reports.
func (r *Reporter) Report() {
	r.Lock()
	defer r.Unlock()

	r.logger.Info("merged since last",
		"op", r.operation,
		"files", r.currentFiles,
		"rows", r.currentRows,
		"time", r.currentDuration,
		"rows/s", rowsPerSecond(r.currentRows, r.currentDuration))

	r.totalFiles += r.currentFiles
	r.totalRows += r.currentRows
	r.totalDuration += r.currentDuration
	r.currentFiles = 0
	r.currentRows = 0
	r.currentDuration = 0
}

// ReportFinal reports overall progress and failures.
func (r *Reporter) ReportFinal() {
	r.logger.Info("merged overall",
		"op", r.operation,
		"files", r.totalFiles,
		"rows", r.totalRows,
		"time", r.totalDuration,
		"rows/s", rowsPerSecond(r.totalRows, r.totalDuration))

	if r.failedFiles > 0 {
		r.logger.Warn("merges failed",
			"op", r.operation,
			"files", r.failedFiles,
			"time", r.failedDuration)
	}
}

// rowsPerSecond returns rows/d.Seconds rounded to 2 decimal places, or n/a if
// either is 0.
func rowsPerSecond(rows int64, d time.Duration) string {
	if rows == 0 || d == 0 {
		return "n/a"
	}

	return fmt.Sprintf("%.2f", float64(rows)/float64(d.Nanoseconds())*nanosecondsInSecond)
}

// StartReporting calls Enable() and then Report() regularly every frequency.
// NB: this is NOT thread safe.
func (r *Reporter) StartReporting(frequency time.Duration) {
	r.Enable()

	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	ticker := time.NewTicker(frequency)

	go func() {
		for {
			select {
			case <-ticker.C:
				r.Report()
			case <-r.stopCh:
				ticker.Stop()
				r.Report()
				r.ReportFinal()
				close(r.doneCh)

				return
			}
		}
	}()
}

// StopReporting stops the regular calling of Report() and triggers
// ReportFinal().
func (r *Reporter) StopReporting() {
	if !r.started {
		return
	}

	close(r.stopCh)
	<-r.doneCh

	r.started = false
}
