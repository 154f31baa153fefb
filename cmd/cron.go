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
	"context"

	"github.com/Macedonialapadian/text-as-data-final-project/fs"
	"github.com/Macedonialapadian/text-as-data-final-project/table"
	"github.com/adhocore/gronx"
	"github.com/adhocore/gronx/pkg/tasker"
	"github.com/spf13/cobra"
)

// options for this cmd.
var crontab string

// cronCmd represents the cron command.
var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run combine on a regular basis",
	Long: `Run combine on a regular basis.

This command takes the same flags as 'combinecsv combine' and will run the
combine with them on the given --crontab schedule.

The default schedule is 8am every day.

Scheduled runs never prompt: an existing output file gets overwritten on
every run (--backup still copies it aside first each time). A failed run is
logged and the schedule carries on.

This command will just run in the foreground forever until killed. You should
probably use the daemonize program to daemonize this instead.
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 0 {
			die("cron takes no arguments; use -i to set the input directory")
		}

		applyLogFile()

		if crontab == "" {
			die("--crontab must be supplied")
		}

		gron := gronx.New()

		if !gron.IsValid(crontab) {
			die("--crontab is invalid")
		}

		engine := selectCombineEngine()

		taskr := tasker.New(tasker.Option{})
		taskr.Task(crontab, func(ctx context.Context) (int, error) {
			err := scheduledCombine(engine)

			return 0, err
		})

		taskr.Run()
	},
}

func init() {
	RootCmd.AddCommand(cronCmd)

	// flags specific to this sub-command
	cronCmd.Flags().StringVarP(&combineInputDir, "input_directory", "i",
		"dataverse_files/xdata", "directory containing the CSV files to combine")
	cronCmd.Flags().StringVarP(&combineOutputPath, "output", "o",
		"dataverse_files/combined_data.csv", "path of the combined output CSV file")
	cronCmd.Flags().StringVarP(&combineEngineName, "engine", "e",
		table.AutoEngineName, "CSV engine to use: auto|swiftcsv|stdlib")
	cronCmd.Flags().BoolVarP(&combineBackup, "backup", "b", false,
		"copy the existing output file to <output>.bak before each run")
	cronCmd.Flags().BoolVar(&combineSkipHeaderCheck, "skip_header_check", false,
		"don't check that all inputs share the first input's header")
	cronCmd.Flags().BoolVarP(&combineRecursive, "recursive", "r", false,
		"also combine CSV files found in nested directories")
	cronCmd.Flags().BoolVar(&combineGz, "gz", false,
		"also combine gzip compressed .csv.gz files")
	cronCmd.Flags().StringVar(&combineMaxMem, "max_mem", "",
		"skip a run if an input file is bigger than this, eg. 500M or 1G")
	cronCmd.Flags().BoolVar(&combineDebug, "debug", false,
		"log per-file merge timings")
	cronCmd.Flags().StringVarP(&crontab, "crontab", "c",
		"0 8 * * *",
		"crontab describing when to run, first 5 columns only")
}

// scheduledCombine does a single scheduled combine run, returning rather
// than dying on failure so the schedule carries on. Inputs get re-discovered
// on every run, picking up new shards.
func scheduledCombine(engine table.Engine) error {
	logger := appLogger.New("run", uniqueString())
	logger.Info("starting scheduled combine", "input", combineInputDir, "output", combineOutputPath)

	paths, err := fs.FindCSVFiles(combineInputDir, combineGz, combineRecursive)
	if err != nil {
		return err
	}

	if err = checkMaxMem(paths); err != nil {
		return err
	}

	if err = backupExistingOutput(combineOutputPath); err != nil {
		return err
	}

	combiner, err := newCombiner(engine, logger, nil)
	if err != nil {
		return err
	}

	_, err = combiner.Combine(paths, combineOutputPath)

	return err
}
