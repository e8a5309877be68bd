package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"realprice/server/internal/textenc"
)

// ErrFormat marks structural problems in a source payload: a corrupt
// archive, missing header columns or an empty filter result. A refresh that
// hits it keeps the previous artifact.
var ErrFormat = errors.New("source format error")

// filterRegion streams the nationwide CSV at inputPath and writes only the
// rows belonging to the region (matched against its city-name tokens) into
// outputPath as UTF-8. The output is written to a temp sibling and renamed
// in on success. Returns the row count and the header fields.
func filterRegion(logger *logrus.Logger, inputPath, outputPath string, cityTokens []string) (int, []string, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	sample := make([]byte, textenc.SampleSize)
	n, err := f.Read(sample)
	if err != nil && err != io.EOF {
		return 0, nil, err
	}
	enc := textenc.Detect(logger, sample[:n])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, nil, err
	}

	reader := csv.NewReader(textenc.NewReader(f, enc))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: cannot read header: %v", ErrFormat, err)
	}
	header = cleanHeader(header)

	cityIdx := -1
	for i, field := range header {
		if strings.Contains(field, "縣市") || strings.Contains(field, "鄉鎮市區") {
			cityIdx = i
			break
		}
	}
	if cityIdx < 0 {
		return 0, nil, fmt.Errorf("%w: no city column in header %v", ErrFormat, header)
	}

	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, nil, err
	}
	writer := csv.NewWriter(out)
	if err := writer.Write(header); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return 0, nil, err
	}

	rowCount := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("Skipping malformed row: %v", err)
			continue
		}
		if cityIdx >= len(record) || !matchesAny(record[cityIdx], cityTokens) {
			continue
		}
		if err := writer.Write(record); err != nil {
			out.Close()
			os.Remove(tmpPath)
			return 0, nil, err
		}
		rowCount++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return 0, nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, nil, err
	}

	if rowCount == 0 {
		os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("%w: no rows matched region tokens %v", ErrFormat, cityTokens)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return 0, nil, err
	}

	logger.WithFields(logrus.Fields{
		"rows":   rowCount,
		"output": outputPath,
	}).Info("Region filter completed")
	return rowCount, header, nil
}

func matchesAny(value string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}

// CityTokens expands a region display name into the spellings found in the
// source. The 臺/台 variants are used interchangeably upstream and the
// generic 市 suffix is optional.
func CityTokens(name string) []string {
	base := strings.TrimSuffix(name, "市")
	tokens := []string{base}
	if strings.Contains(base, "臺") {
		tokens = append(tokens, strings.ReplaceAll(base, "臺", "台"))
	} else if strings.Contains(base, "台") {
		tokens = append(tokens, strings.ReplaceAll(base, "台", "臺"))
	}
	return tokens
}

func cleanHeader(header []string) []string {
	cleaned := make([]string, len(header))
	for i, field := range header {
		cleaned[i] = strings.TrimSpace(strings.ReplaceAll(field, "\uFEFF", ""))
	}
	return cleaned
}
