package textenc

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDetect_UTF8(t *testing.T) {
	assert.Equal(t, EncodingUTF8, Detect(testLogger(), []byte("鄉鎮市區,總價元")))
}

func TestDetect_UTF8TruncatedRune(t *testing.T) {
	// A sample cut mid-rune must still read as UTF-8
	sample := []byte("鄉鎮市區")
	assert.Equal(t, EncodingUTF8, Detect(testLogger(), sample[:len(sample)-1]))
}

func TestDetect_Big5(t *testing.T) {
	encoded, err := traditionalchinese.Big5.NewEncoder().String("鄉鎮市區,總價元")
	require.NoError(t, err)
	assert.Equal(t, EncodingBig5, Detect(testLogger(), []byte(encoded)))
}

func TestDetect_UndetectableDefaultsToUTF8(t *testing.T) {
	assert.Equal(t, EncodingUTF8, Detect(testLogger(), []byte{0xFF, 0xFF, 0xFF}))
}

func TestNewReader_Big5(t *testing.T) {
	encoded, err := traditionalchinese.Big5.NewEncoder().String("鄉鎮市區")
	require.NoError(t, err)

	decoded, err := io.ReadAll(NewReader(bytes.NewReader([]byte(encoded)), EncodingBig5))
	require.NoError(t, err)
	assert.Equal(t, "鄉鎮市區", string(decoded))
}

func TestNewReader_GBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("总价元")
	require.NoError(t, err)

	decoded, err := io.ReadAll(NewReader(bytes.NewReader([]byte(encoded)), EncodingGBK))
	require.NoError(t, err)
	assert.Equal(t, "总价元", string(decoded))
}

func TestNewReader_StripsBOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("鄉鎮市區")...)

	decoded, err := io.ReadAll(NewReader(bytes.NewReader(input), EncodingUTF8))
	require.NoError(t, err)
	assert.Equal(t, "鄉鎮市區", string(decoded))
}
