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

package combine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Macedonialapadian/text-as-data-final-project/fs"
	"github.com/Macedonialapadian/text-as-data-final-project/table"
	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
	. "github.com/smartystreets/goconvey/convey"
)

// TestNew tests that a Combiner can't be made without an engine.
func TestNew(t *testing.T) {
	Convey("New() needs an engine", t, func() {
		combiner, err := New(Config{})
		So(err, ShouldEqual, ErrNoEngine)
		So(combiner, ShouldBeNil)
	})
}

// TestCombine tests merging CSV files together with each engine.
func TestCombine(t *testing.T) {
	for _, engine := range []table.Engine{table.NewSwiftCSVEngine(), table.NewStdEngine()} {
		Convey("Given input CSV files and a Combiner using the "+engine.Name()+" engine", t, func() {
			combiner, err := New(Config{Engine: engine})
			So(err, ShouldBeNil)

			dir := t.TempDir()
			outputPath := filepath.Join(dir, "combined.csv")

			pathA := createCSVFile(t, dir, "a.csv", "id,text\n1,alpha\n2,beta\n")
			pathB := createCSVFile(t, dir, "b.csv", "id,text\n3,gamma\n4,delta\n5,epsilon\n")

			expectedOutput := "id,text\n1,alpha\n2,beta\n3,gamma\n4,delta\n5,epsilon\n"

			Convey("Combine() merges them in order, with the header written once", func() {
				summary, err := combiner.Combine([]string{pathA, pathB}, outputPath)
				So(err, ShouldBeNil)
				So(summary.Engine, ShouldEqual, engine.Name())
				So(summary.Files, ShouldEqual, 2)
				So(summary.Rows, ShouldEqual, 5)
				So(summary.PerFile, ShouldResemble, []FileRows{
					{Path: pathA, Rows: 2},
					{Path: pathB, Rows: 3},
				})

				b, err := os.ReadFile(outputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, expectedOutput)

				info, err := os.Stat(outputPath)
				So(err, ShouldBeNil)
				So(summary.OutputSize, ShouldEqual, info.Size())

				Convey("and a rerun produces byte-identical output", func() {
					_, err := combiner.Combine([]string{pathA, pathB}, outputPath)
					So(err, ShouldBeNil)

					b2, err := os.ReadFile(outputPath)
					So(err, ShouldBeNil)
					So(string(b2), ShouldEqual, string(b))
				})
			})

			Convey("Header-only inputs contribute 0 rows", func() {
				pathEmpty := createCSVFile(t, dir, "empty.csv", "id,text\n")

				summary, err := combiner.Combine([]string{pathEmpty, pathA}, outputPath)
				So(err, ShouldBeNil)
				So(summary.Rows, ShouldEqual, 2)
				So(summary.PerFile, ShouldResemble, []FileRows{
					{Path: pathEmpty, Rows: 0},
					{Path: pathA, Rows: 2},
				})

				b, err := os.ReadFile(outputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "id,text\n1,alpha\n2,beta\n")
			})

			Convey("Blank lines in inputs are not rows, so don't get merged or counted", func() {
				pathBlanky := createCSVFile(t, dir, "blanky.csv", "id,text\n6,theta\n\n7,iota\n\n")

				summary, err := combiner.Combine([]string{pathA, pathBlanky}, outputPath)
				So(err, ShouldBeNil)
				So(summary.Rows, ShouldEqual, 4)
				So(summary.PerFile, ShouldResemble, []FileRows{
					{Path: pathA, Rows: 2},
					{Path: pathBlanky, Rows: 2},
				})

				b, err := os.ReadFile(outputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "id,text\n1,alpha\n2,beta\n6,theta\n7,iota\n")
			})

			Convey("Gzip compressed inputs get decompressed transparently", func() {
				pathGz := createGzCSVFile(t, dir, "c.csv.gz", "id,text\n6,zeta\n")

				summary, err := combiner.Combine([]string{pathA, pathGz}, outputPath)
				So(err, ShouldBeNil)
				So(summary.Rows, ShouldEqual, 3)

				b, err := os.ReadFile(outputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "id,text\n1,alpha\n2,beta\n6,zeta\n")
			})

			Convey("An outputPath ending in .gz makes the output compressed", func() {
				gzOutputPath := filepath.Join(dir, "combined.csv.gz")

				summary, err := combiner.Combine([]string{pathA, pathB}, gzOutputPath)
				So(err, ShouldBeNil)
				So(summary.Rows, ShouldEqual, 5)

				b, err := os.ReadFile(gzOutputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldNotEqual, expectedOutput)

				content, err := fs.ReadCompressedFile(gzOutputPath)
				So(err, ShouldBeNil)
				So(content, ShouldEqual, expectedOutput)
			})

			Convey("Mismatched headers make Combine() fail, mentioning every offender", func() {
				pathBad := createCSVFile(t, dir, "bad.csv", "id,body\n9,omega\n")
				pathWorse := createCSVFile(t, dir, "worse.csv", "num,text\n8,psi\n")

				_, err := combiner.Combine([]string{pathA, pathBad, pathWorse}, outputPath)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrHeaderMismatch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "bad.csv")
				So(err.Error(), ShouldContainSubstring, "worse.csv")

				Convey("and no output file gets created", func() {
					_, err := os.Stat(outputPath)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("SkipHeaderCheck lets mismatched headers through", func() {
				skipper, err := New(Config{Engine: engine, SkipHeaderCheck: true})
				So(err, ShouldBeNil)

				pathBad := createCSVFile(t, dir, "bad.csv", "id,body\n9,omega\n")

				summary, err := skipper.Combine([]string{pathA, pathBad}, outputPath)
				So(err, ShouldBeNil)
				So(summary.Rows, ShouldEqual, 3)
			})

			Convey("A zero-byte input is an error", func() {
				pathZero := createCSVFile(t, dir, "zero.csv", "")

				_, err := combiner.Combine([]string{pathZero, pathA}, outputPath)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, table.ErrNoRecords), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "zero.csv")
			})

			Convey("A malformed input stops the merge, leaving partial output behind", func() {
				pathRagged := createCSVFile(t, dir, "ragged.csv", "id,text\n7,eta\noops\n")

				_, err := combiner.Combine([]string{pathA, pathRagged}, outputPath)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "ragged.csv")

				b, err := os.ReadFile(outputPath)
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "id,text\n1,alpha\n2,beta\n")
			})

			Convey("Progress callbacks get called as each input is merged", func() {
				var calls []string

				noisy, err := New(Config{
					Engine: engine,
					Progress: func(n, total int, path string, rows int) {
						calls = append(calls, fmt.Sprintf("%d/%d %s %d", n, total, filepath.Base(path), rows))
					},
				})
				So(err, ShouldBeNil)

				_, err = noisy.Combine([]string{pathA, pathB}, outputPath)
				So(err, ShouldBeNil)
				So(calls, ShouldResemble, []string{"1/2 a.csv 2", "2/2 b.csv 3"})
			})

			Convey("A ReportFrequency makes Combine() log merge progress", func() {
				buff := new(bytes.Buffer)
				l := log15.New()
				l.SetHandler(log15.StreamHandler(buff, log15.LogfmtFormat()))

				loud, err := New(Config{Engine: engine, Logger: l, ReportFrequency: 50 * time.Millisecond})
				So(err, ShouldBeNil)

				_, err = loud.Combine([]string{pathA, pathB}, outputPath)
				So(err, ShouldBeNil)

				So(buff.String(), ShouldContainSubstring, "combining csv files")
				So(buff.String(), ShouldContainSubstring, "merged overall")
				So(buff.String(), ShouldContainSubstring, "combined csv files")
				So(buff.String(), ShouldContainSubstring, "rows=5")
			})

			Convey("Combine() with no inputs fails", func() {
				_, err := combiner.Combine(nil, outputPath)
				So(err, ShouldEqual, ErrNoInputs)
			})

			Convey("Combine() on a missing input fails before creating any output", func() {
				_, err := combiner.Combine([]string{filepath.Join(dir, "no.such.csv")}, outputPath)
				So(err, ShouldNotBeNil)

				_, err = os.Stat(outputPath)
				So(os.IsNotExist(err), ShouldBeTrue)
			})

			Convey("Combine() to an uncreatable output path fails", func() {
				_, err := combiner.Combine([]string{pathA}, filepath.Join(dir, "no", "such", "dir.csv"))
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create output file")
			})
		})
	}
}

// createCSVFile creates a file with the given contents inside dir, returning
// its path.
func createCSVFile(t *testing.T, dir, basename, contents string) string {
	t.Helper()

	path := filepath.Join(dir, basename)

	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	return path
}

// createGzCSVFile is like createCSVFile, but gzip compresses the contents.
func createGzCSVFile(t *testing.T, dir, basename, contents string) string {
	t.Helper()

	path := filepath.Join(dir, basename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	zw := pgzip.NewWriter(f)

	if _, err = io.WriteString(zw, contents); err != nil {
		t.Fatal(err)
	}

	if err = zw.Close(); err != nil {
		t.Fatal(err)
	}

	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	return path
}
