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

package table

import (
	"encoding/csv"
	"errors"
	"io"
)

// StdEngine is an Engine that uses the standard library's encoding/csv. It is
// the fallback for when the preferred engine fails its self-check.
type StdEngine struct{}

// NewStdEngine returns a StdEngine.
func NewStdEngine() *StdEngine {
	return &StdEngine{}
}

// Name returns StdEngineName.
func (s *StdEngine) Name() string {
	return StdEngineName
}

// Read parses everything from the given reader in to a Table.
func (s *StdEngine) Read(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	t := &Table{Header: records[0]}
	if len(records) > 1 {
		t.Rows = records[1:]
	}

	return t, nil
}

// ReadHeader parses and returns just the first record from the given reader.
func (s *StdEngine) ReadHeader(r io.Reader) ([]string, error) {
	record, err := csv.NewReader(r).Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRecords
	}

	return record, err
}

// NewWriter returns a RecordWriter that writes CSV to w.
func (s *StdEngine) NewWriter(w io.Writer) RecordWriter {
	return &stdRecordWriter{w: csv.NewWriter(w)}
}

// stdRecordWriter adapts csv.Writer, whose Flush does not return its error,
// to the RecordWriter interface.
type stdRecordWriter struct {
	w *csv.Writer
}

func (s *stdRecordWriter) Write(record []string) error {
	return s.w.Write(record)
}

func (s *stdRecordWriter) Flush() error {
	s.w.Flush()

	return s.w.Error()
}
