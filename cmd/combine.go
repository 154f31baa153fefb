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

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/Macedonialapadian/text-as-data-final-project/combine"
	"github.com/Macedonialapadian/text-as-data-final-project/fs"
	"github.com/Macedonialapadian/text-as-data-final-project/table"
	"github.com/dustin/go-humanize"
	"github.com/inconshreveable/log15"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/termie/go-shutil"
)

const backupSuffix = ".bak"
const debugReportFrequency = 10 * time.Minute

// options for this cmd.
var combineInputDir string
var combineOutputPath string
var combineEngineName string
var combineForce bool
var combineBackup bool
var combineSkipHeaderCheck bool
var combineRecursive bool
var combineGz bool
var combineMaxMem string
var combineDebug bool

// combineCmd represents the combine command.
var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combine the CSV files in a directory in to one",
	Long: `Combine the CSV files in a directory in to a single CSV file.

All the *.csv files directly inside --input_directory (*.csv.gz files too
with --gz; nested directories too with --recursive) get concatenated, in
alphabetical order, to --output: the header line of the first file once, then
the data rows of every file in turn.

All files must share the first file's header. Mismatches get reported
together and nothing is written; --skip_header_check skips the check, and a
mismatched file's rows are then combined anyway, under the first file's
header.

Files get parsed one at a time with the chosen --engine ('auto' picks the
first of swiftcsv, stdlib to pass a self-check), so memory use is bounded by
the largest single file. --max_mem takes a size like 500M or 1G and refuses
to start if any input file is bigger than that.

If --output already exists you get asked before it is overwritten; --force
answers yes for you, and --backup first copies the old output to
'<output>.bak'. An --output ending in .gz gets written gzip compressed.

A run that fails part way through stops at the first problem file and leaves
the partial output behind.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 0 {
			die("combine takes no arguments; use -i to set the input directory")
		}

		applyLogFile()

		engine := selectCombineEngine()
		paths := findCombineInputs()

		applyMaxMemGuard(paths)

		if !confirmOverwrite(combineOutputPath) {
			cliPrint("Operation cancelled.\n")

			return
		}

		if err := backupExistingOutput(combineOutputPath); err != nil {
			die("%s", err)
		}

		if err := doCombine(engine, paths); err != nil {
			die("%s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(combineCmd)

	// flags specific to this sub-command
	combineCmd.Flags().StringVarP(&combineInputDir, "input_directory", "i",
		"dataverse_files/xdata", "directory containing the CSV files to combine")
	combineCmd.Flags().StringVarP(&combineOutputPath, "output", "o",
		"dataverse_files/combined_data.csv", "path of the combined output CSV file")
	combineCmd.Flags().StringVarP(&combineEngineName, "engine", "e",
		table.AutoEngineName, "CSV engine to use: auto|swiftcsv|stdlib")
	combineCmd.Flags().BoolVarP(&combineForce, "force", "f", false,
		"overwrite an existing output file without asking")
	combineCmd.Flags().BoolVarP(&combineBackup, "backup", "b", false,
		"copy an existing output file to <output>.bak before overwriting")
	combineCmd.Flags().BoolVar(&combineSkipHeaderCheck, "skip_header_check", false,
		"don't check that all inputs share the first input's header")
	combineCmd.Flags().BoolVarP(&combineRecursive, "recursive", "r", false,
		"also combine CSV files found in nested directories")
	combineCmd.Flags().BoolVar(&combineGz, "gz", false,
		"also combine gzip compressed .csv.gz files")
	combineCmd.Flags().StringVar(&combineMaxMem, "max_mem", "",
		"refuse to start if an input file is bigger than this, eg. 500M or 1G")
	combineCmd.Flags().BoolVar(&combineDebug, "debug", false,
		"log per-file merge timings")
}

// selectCombineEngine returns the CSV engine picked by --engine, exiting if
// it isn't usable.
func selectCombineEngine() table.Engine {
	engine, err := table.Select(combineEngineName)
	if err != nil {
		die("%s", err)
	}

	appLogger.Info("selected csv engine", "engine", engine.Name())
	cliPrint("Using: %s engine\n", engine.Name())

	return engine
}

// findCombineInputs returns the sorted CSV files in --input_directory,
// exiting if there are none.
func findCombineInputs() []string {
	paths, err := fs.FindCSVFiles(combineInputDir, combineGz, combineRecursive)
	if err != nil {
		die("%s", err)
	}

	cliPrint("Found %d CSV file(s) to combine\n", len(paths))

	return paths
}

// applyMaxMemGuard exits if --max_mem was supplied and any input file is
// bigger than that.
func applyMaxMemGuard(paths []string) {
	if err := checkMaxMem(paths); err != nil {
		die("%s", err)
	}
}

// checkMaxMem returns an error if --max_mem was supplied and any input file
// is bigger than that, since combining holds the largest single file's
// parsed table in memory.
func checkMaxMem(paths []string) error {
	if combineMaxMem == "" {
		return nil
	}

	maxMem, err := bytefmt.ToBytes(combineMaxMem)
	if err != nil {
		return fmt.Errorf("invalid --max_mem [%s]: %w", combineMaxMem, err)
	}

	largest, size, err := fs.LargestFile(paths)
	if err != nil {
		return err
	}

	if uint64(size) > maxMem {
		return fmt.Errorf("input file [%s] is %s, larger than the --max_mem limit of %s",
			largest, humanize.IBytes(uint64(size)), humanize.IBytes(maxMem))
	}

	return nil
}

// confirmOverwrite asks on the terminal before an existing output file gets
// overwritten, returning false if the user declines. --force skips the
// asking.
func confirmOverwrite(path string) bool {
	if combineForce {
		return true
	}

	if _, err := os.Stat(path); err != nil {
		return true
	}

	cliPrint("Output file [%s] already exists. Overwrite? (y/n): ", path)

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// backupExistingOutput copies an existing output file to <output>.bak if
// --backup was supplied.
func backupExistingOutput(path string) error {
	if !combineBackup {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := shutil.CopyFile(path, path+backupSuffix, false); err != nil {
		return fmt.Errorf("failed to backup [%s]: %w", path, err)
	}

	cliPrint("Backed up existing output to [%s]\n", path+backupSuffix)

	return nil
}

// newCombiner returns a Combiner that uses the given engine, logger and
// progress callback, and respects our flags.
func newCombiner(engine table.Engine, logger log15.Logger, progress combine.Progress) (*combine.Combiner, error) {
	conf := combine.Config{
		Engine:          engine,
		Logger:          logger,
		SkipHeaderCheck: combineSkipHeaderCheck,
		Progress:        progress,
	}

	if combineDebug {
		conf.ReportFrequency = debugReportFrequency
	}

	return combine.New(conf)
}

// doCombine merges the given files in to --output, printing progress and a
// final summary.
func doCombine(engine table.Engine, paths []string) error {
	combiner, err := newCombiner(engine, appLogger, printCombineProgress)
	if err != nil {
		return err
	}

	summary, err := combiner.Combine(paths, combineOutputPath)
	if err != nil {
		return err
	}

	printCombineSummary(summary)

	return nil
}

// printCombineProgress prints a progress line for a just-merged file.
func printCombineProgress(n, total int, path string, rows int) {
	cliPrint("[%d/%d] Reading %s... (%s rows)\n", n, total, filepath.Base(path), humanize.Comma(int64(rows)))
}

// printCombineSummary prints a table of per-file row counts, then totals.
func printCombineSummary(summary *combine.Summary) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"File", "Rows"})

	for _, fr := range summary.PerFile {
		tw.Append([]string{filepath.Base(fr.Path), humanize.Comma(int64(fr.Rows))})
	}

	tw.Render()

	cliPrint("Successfully combined %d files\n", summary.Files)
	cliPrint("  Total rows: %s\n", humanize.Comma(int64(summary.Rows)))
	cliPrint("  Output: %s\n", combineOutputPath)
	cliPrint("  Output size: %s\n", humanize.IBytes(uint64(summary.OutputSize)))
}
