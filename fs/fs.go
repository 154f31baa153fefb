package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/klauspost/pgzip"
	"golang.org/x/exp/constraints"
)

type Error string

func (e Error) Error() string { return string(e) }

const ErrDirNotFound = Error("input directory does not exist")
const ErrNoCSVFiles = Error("no CSV files found")

// CSVSuffix and GzSuffix are the file name suffixes that mark files as CSV
// data we can read.
const CSVSuffix = ".csv"
const GzSuffix = ".csv.gz"

// FindCSVFiles finds files in the given dir that have basenames with
// CSVSuffix, returning their paths sorted lexically. With gz true, files with
// GzSuffix are found as well. With recursive true, subdirectories of dir are
// searched too.
//
// It returns ErrDirNotFound if dir does not exist, and ErrNoCSVFiles if dir
// exists but nothing matched.
func FindCSVFiles(dir string, gz, recursive bool) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w [%s]", ErrDirNotFound, dir)
		}

		return nil, err
	}

	found, err := findCSVMatches(dir, gz, recursive)
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w in [%s]", ErrNoCSVFiles, dir)
	}

	return boolMapToSortedKeys(found), nil
}

func findCSVMatches(dir string, gz, recursive bool) (map[string]bool, error) {
	if recursive {
		return walkForCSVFiles(dir, gz)
	}

	return globCSVFiles(dir, gz)
}

func csvSuffixes(gz bool) []string {
	suffixes := []string{CSVSuffix}
	if gz {
		suffixes = append(suffixes, GzSuffix)
	}

	return suffixes
}

func globCSVFiles(dir string, gz bool) (map[string]bool, error) {
	found := make(map[string]bool)

	for _, suffix := range csvSuffixes(gz) {
		paths, err := filepath.Glob(fmt.Sprintf("%s/*%s", dir, suffix))
		if err != nil {
			return nil, err
		}

		for _, path := range paths {
			found[path] = true
		}
	}

	return found, nil
}

func walkForCSVFiles(dir string, gz bool) (map[string]bool, error) {
	suffixes := csvSuffixes(gz)
	found := make(map[string]bool)

	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}

			for _, suffix := range suffixes {
				if strings.HasSuffix(path, suffix) {
					found[path] = true

					break
				}
			}

			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// boolMapToSortedKeys returns a sorted slice of the given keys.
func boolMapToSortedKeys[T constraints.Ordered](m map[T]bool) []T {
	keys := make([]T, len(m))
	i := 0

	for key := range m {
		keys[i] = key
		i++
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// OpenCSVFile opens the given file for reading, transparently decompressing
// its contents if its name ends with GzSuffix.
func OpenCSVFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, GzSuffix) {
		return file, nil
	}

	gz, err := pgzip.NewReader(file)
	if err != nil {
		file.Close()

		return nil, err
	}

	return &gzFile{Reader: gz, file: file}, nil
}

// gzFile makes Close close both the decompressor and the underlying file.
type gzFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzFile) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.file.Close()

		return err
	}

	return g.file.Close()
}

// ReadCompressedFile returns the whole uncompressed contents of the given
// gzip compressed file.
func ReadCompressedFile(filePath string) (string, error) {
	actualFile, err := os.Open(filePath)
	if err != nil {
		return "", err
	}

	defer actualFile.Close()

	fileReader, err := pgzip.NewReader(actualFile)
	if err != nil {
		return "", err
	}

	defer fileReader.Close()

	fileScanner := bufio.NewScanner(fileReader)

	var fileContents string
	for fileScanner.Scan() {
		fileContents += fileScanner.Text() + "\n"
	}

	return fileContents, fileScanner.Err()
}

// LargestFile returns the path and size in bytes of the largest of the given
// files. Ties go to the earliest path.
func LargestFile(paths []string) (string, int64, error) {
	var (
		largest string
		size    int64
	)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", 0, err
		}

		if largest == "" || info.Size() > size {
			largest = path
			size = info.Size()
		}
	}

	return largest, size, nil
}
