package fetcher

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoTabularMember is returned when an archive holds no CSV member at all
var ErrNoTabularMember = errors.New("no csv member found in archive")

// ExtractCSV unpacks the transaction table from a downloaded archive.
// Members named like the register export (lvr_land*.csv) are preferred; if
// none match, the first CSV member is taken. The extracted file is written
// under extractDir and its path returned.
func ExtractCSV(logger *logrus.Logger, zipPath, extractDir string) (string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("invalid archive %s: %w", zipPath, err)
	}
	defer reader.Close()

	logger.WithFields(logrus.Fields{
		"archive": zipPath,
		"members": len(reader.File),
	}).Info("Opened archive")

	member := selectMember(reader.File)
	if member == nil {
		return "", ErrNoTabularMember
	}

	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return "", err
	}

	destPath := filepath.Join(extractDir, filepath.Base(member.Name))
	if err := extractMember(member, destPath); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", member.Name, err)
	}

	logger.WithField("member", member.Name).Info("Extracted CSV from archive")
	return destPath, nil
}

func selectMember(files []*zip.File) *zip.File {
	var fallback *zip.File
	for _, f := range files {
		name := strings.ToLower(f.Name)
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if strings.Contains(name, "lvr_land") {
			return f
		}
		if fallback == nil {
			fallback = f
		}
	}
	return fallback
}

func extractMember(member *zip.File, destPath string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return err
}
