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

package reporter

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"
)

type Error string

func (e Error) Error() string { return string(e) }

const errTest = Error("test error")

func TestReporter(t *testing.T) {
	var mergeErr error

	merge := func() (int, error) {
		<-time.After(5 * time.Millisecond)

		return 3, mergeErr
	}

	Convey("Given a Reporter", t, func() {
		buff := new(bytes.Buffer)
		l := log15.New()
		l.SetHandler(log15.StreamHandler(buff, log15.LogfmtFormat()))

		r := New("combine", l)
		So(r, ShouldNotBeNil)

		Convey("You can merge files", func() {
			rows, err := r.TimeFileMerge(merge)
			So(err, ShouldBeNil)
			So(rows, ShouldEqual, 3)
			r.Report()
			So(buff.String(), ShouldContainSubstring,
				`lvl=info msg="merged since last" op=combine files=0 rows=0 time=0s rows/s=n/a`)

			Convey("Once enabled, you can time file merges", func() {
				r.Enable()
				buff.Reset()

				rows, err := r.TimeFileMerge(merge)
				So(err, ShouldBeNil)
				So(rows, ShouldEqual, 3)
				_, err = r.TimeFileMerge(merge)
				So(err, ShouldBeNil)
				mergeErr = errTest
				_, err = r.TimeFileMerge(merge)
				So(err, ShouldNotBeNil)
				mergeErr = nil

				r.Report()
				So(buff.String(), ShouldContainSubstring, `lvl=info msg="merged since last" op=combine files=2 rows=6`)
				So(buff.String(), ShouldContainSubstring, `time=`)
				So(buff.String(), ShouldNotContainSubstring, `rows/s=n/a`)

				buff.Reset()
				r.ReportFinal()
				So(buff.String(), ShouldContainSubstring, `lvl=info msg="merged overall" op=combine files=2 rows=6`)
				So(buff.String(), ShouldNotContainSubstring, `rows/s=n/a`)
				So(buff.String(), ShouldContainSubstring, `lvl=warn msg="merges failed" op=combine files=1`)
			})
		})

		Convey("You can report merge progress regularly", func() {
			r.StartReporting(13 * time.Millisecond)
			for i := 0; i < 6; i++ {
				_, err := r.TimeFileMerge(merge)
				So(err, ShouldBeNil)
			}

			r.StopReporting()
			So(buff.String(), ShouldContainSubstring, `lvl=info msg="merged since last" op=combine files=2`)
			reg := regexp.MustCompile("merged since last")
			matches := reg.FindAllStringIndex(buff.String(), -1)
			So(len(matches), ShouldBeBetweenOrEqual, 2, 5)
			So(buff.String(), ShouldContainSubstring, `lvl=info msg="merged overall" op=combine files=6 rows=18`)
			So(buff.String(), ShouldNotContainSubstring, `lvl=warn msg="merges failed"`)

			buff.Reset()
			r.StopReporting()
			So(buff.String(), ShouldBeEmpty)
		})
	})
}
