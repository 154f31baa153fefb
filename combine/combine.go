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

// package combine is used to merge same-schema CSV files in to a single
// output CSV file.

package combine

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/Macedonialapadian/text-as-data-final-project/fs"
	"github.com/Macedonialapadian/text-as-data-final-project/reporter"
	"github.com/Macedonialapadian/text-as-data-final-project/table"
	"github.com/hashicorp/go-multierror"
	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
)

const bytesInMB = 1000000
const pgzipWriterBlocksMultiplier = 2
const gzOutputSuffix = ".gz"

// Error is the type of the constant Err* variables.
type Error string

// Error is an error method.
func (e Error) Error() string { return string(e) }

// ErrNoInputs is returned by Combine() when given no input file paths.
const ErrNoInputs = Error("no input files given")

// ErrNoEngine is returned by New() when the Config has a nil Engine.
const ErrNoEngine = Error("no CSV engine given")

// ErrHeaderMismatch is returned by Combine() when an input file's header
// doesn't match the first input's.
const ErrHeaderMismatch = Error("header does not match the first input's")

// Progress callbacks get called after each input file has been merged, with
// the 1-based number of the file just merged, the total number of input
// files, the path of the file, and the number of data rows it contributed.
type Progress func(n, total int, path string, rows int)

// Config is used to configure a Combiner. Engine is required; everything
// else is optional.
type Config struct {
	// Engine is the CSV engine used to parse the inputs and write the output.
	Engine table.Engine

	// Logger is used to log merge progress. Defaults to a logger that
	// discards everything.
	Logger log15.Logger

	// SkipHeaderCheck disables the pre-merge check that every input shares
	// the first input's header.
	SkipHeaderCheck bool

	// Progress, if set, is called after each input file has been merged.
	Progress Progress

	// ReportFrequency, if greater than 0, logs merge progress at the given
	// frequency during Combine().
	ReportFrequency time.Duration
}

// Combiner merges the contents of same-schema CSV files in to a single
// output CSV file.
type Combiner struct {
	engine          table.Engine
	logger          log15.Logger
	skipHeaderCheck bool
	progress        Progress
	reportFrequency time.Duration
}

// New returns a Combiner configured with the given Config.
func New(conf Config) (*Combiner, error) {
	if conf.Engine == nil {
		return nil, ErrNoEngine
	}

	logger := conf.Logger
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}

	return &Combiner{
		engine:          conf.Engine,
		logger:          logger,
		skipHeaderCheck: conf.SkipHeaderCheck,
		progress:        conf.Progress,
		reportFrequency: conf.ReportFrequency,
	}, nil
}

// FileRows records how many data rows one input file contributed to the
// output.
type FileRows struct {
	Path string
	Rows int
}

// Summary describes a completed Combine(): the engine used, the number of
// input files merged, the total number of data rows written, the size in
// bytes of the output file, and the per-file row counts in merge order.
type Summary struct {
	Engine     string
	Files      int
	Rows       int
	OutputSize int64
	PerFile    []FileRows
}

// Combine merges the CSV files at the given paths, in the given order, in to
// a single CSV file at outputPath. The header of the first input is written
// once at the top of the output, followed by the data rows of every input in
// turn. Inputs ending in .gz are decompressed transparently, and an
// outputPath ending in .gz makes the output gzip compressed.
//
// Unless configured with SkipHeaderCheck, it first confirms that every input
// shares the first input's header, and creates no output if any differ. The
// returned error then mentions every input that differed.
//
// Inputs are read one at a time, so memory usage is bounded by the largest
// single input, not the total.
//
// On a read or parse failure it stops straight away, and the partial output
// file (holding everything merged before the failure) is left behind for
// inspection.
func (c *Combiner) Combine(paths []string, outputPath string) (*Summary, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	if !c.skipHeaderCheck {
		if err := c.checkHeaders(paths); err != nil {
			return nil, err
		}
	}

	c.logger.Info("combining csv files", "files", len(paths), "engine", c.engine.Name(), "output", outputPath)

	writer, closeOutput, err := c.createOutput(outputPath)
	if err != nil {
		return nil, err
	}

	summary, err := c.mergeAll(paths, writer)
	if err != nil {
		closeOutput()

		return nil, err
	}

	if err = closeOutput(); err != nil {
		return nil, fmt.Errorf("failed to close output file [%s]: %w", outputPath, err)
	}

	return c.finishSummary(summary, outputPath)
}

// checkHeaders confirms every input shares the first input's header,
// returning an error that mentions each input that differs.
func (c *Combiner) checkHeaders(paths []string) error {
	expected, err := c.readHeader(paths[0])
	if err != nil {
		return err
	}

	var errm *multierror.Error

	for _, path := range paths[1:] {
		header, err := c.readHeader(path)
		if err != nil {
			errm = multierror.Append(errm, err)

			continue
		}

		if !slices.Equal(header, expected) {
			errm = multierror.Append(errm, fmt.Errorf("%w [%s]", ErrHeaderMismatch, path))
		}
	}

	return errm.ErrorOrNil()
}

// readHeader returns the header row of the CSV file at the given path.
func (c *Combiner) readHeader(path string) ([]string, error) {
	input, err := fs.OpenCSVFile(path)
	if err != nil {
		return nil, err
	}

	defer input.Close()

	header, err := c.engine.ReadHeader(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read header of [%s]: %w", path, err)
	}

	return header, nil
}

// createOutput creates the output file and returns a RecordWriter on it,
// along with a function that flushes the writer and closes the file. The
// output gets gzip compressed if outputPath ends in .gz.
func (c *Combiner) createOutput(outputPath string) (table.RecordWriter, func() error, error) {
	output, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file [%s]: %w", outputPath, err)
	}

	if !strings.HasSuffix(outputPath, gzOutputSuffix) {
		writer := c.engine.NewWriter(output)

		return writer, func() error {
			if err := writer.Flush(); err != nil {
				return err
			}

			return output.Close()
		}, nil
	}

	zw, closeOutput, err := Compress(output)
	if err != nil {
		output.Close()

		return nil, nil, err
	}

	writer := c.engine.NewWriter(zw)

	return writer, func() error {
		if err := writer.Flush(); err != nil {
			return err
		}

		return closeOutput()
	}, nil
}

// Compress wraps the given output to compress data copied to it, and returns
// the writer. Also returns a function that you should call to close the
// writer and output when you're done.
func Compress(output *os.File) (*pgzip.Writer, func() error, error) {
	compressedOutput := pgzip.NewWriter(output)

	err := compressedOutput.SetConcurrency(bytesInMB, runtime.GOMAXPROCS(0)*pgzipWriterBlocksMultiplier)
	if err != nil {
		return nil, nil, err
	}

	return compressedOutput, func() error {
		if err := compressedOutput.Close(); err != nil {
			output.Close()

			return err
		}

		return output.Close()
	}, nil
}

// mergeAll merges each input in turn in to the given writer, reporting
// progress as configured.
func (c *Combiner) mergeAll(paths []string, writer table.RecordWriter) (*Summary, error) {
	r := reporter.New("combine", c.logger)

	if c.reportFrequency > 0 {
		r.StartReporting(c.reportFrequency)

		defer r.StopReporting()
	}

	summary := &Summary{Engine: c.engine.Name()}

	for i, path := range paths {
		rows, err := r.TimeFileMerge(func() (int, error) {
			return c.mergeFile(writer, path, i == 0)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to combine [%s]: %w", path, err)
		}

		summary.Files++
		summary.Rows += rows
		summary.PerFile = append(summary.PerFile, FileRows{Path: path, Rows: rows})

		if c.progress != nil {
			c.progress(i+1, len(paths), path, rows)
		}
	}

	return summary, nil
}

// mergeFile parses the CSV file at the given path and writes its data rows
// to the given writer, preceded by its header if first is true. Returns the
// number of data rows written.
func (c *Combiner) mergeFile(writer table.RecordWriter, path string, first bool) (int, error) {
	input, err := fs.OpenCSVFile(path)
	if err != nil {
		return 0, err
	}

	defer input.Close()

	t, err := c.engine.Read(input)
	if err != nil {
		return 0, err
	}

	return t.RowCount(), c.writeTable(writer, t, first)
}

// writeTable writes the given table's data rows to the given writer,
// preceded by its header if first is true.
func (c *Combiner) writeTable(writer table.RecordWriter, t *table.Table, first bool) error {
	if first {
		if err := writer.Write(t.Header); err != nil {
			return err
		}
	}

	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// finishSummary stats the output file to record its size, logs completion,
// and returns the finished summary.
func (c *Combiner) finishSummary(summary *Summary, outputPath string) (*Summary, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output file [%s]: %w", outputPath, err)
	}

	summary.OutputSize = info.Size()

	c.logger.Info("combined csv files", "files", summary.Files, "rows", summary.Rows,
		"output", outputPath, "size", summary.OutputSize)

	return summary, nil
}
