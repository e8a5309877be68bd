package textenc

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Candidate encodings, probed in order. The register's exports drifted
// between UTF-8 and legacy CJK encodings over the years.
const (
	EncodingUTF8    = "utf-8"
	EncodingBig5    = "big5"
	EncodingGBK     = "gbk"
	EncodingUTF8BOM = "utf-8-sig"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SampleSize is how much of the file the detector inspects
const SampleSize = 1024

// Detect probes the candidate list against a leading sample and returns the
// first encoding that decodes it cleanly. When nothing matches it falls back
// to UTF-8 and logs the degradation.
func Detect(logger *logrus.Logger, sample []byte) string {
	for _, name := range []string{EncodingUTF8, EncodingBig5, EncodingGBK, EncodingUTF8BOM} {
		if decodes(name, sample) {
			logger.WithField("encoding", name).Info("Detected source encoding")
			return name
		}
	}

	logger.Warn("Could not detect source encoding, defaulting to UTF-8")
	return EncodingUTF8
}

// NewReader wraps r so it yields UTF-8 regardless of the source encoding.
// A UTF-8 BOM is consumed if present.
func NewReader(r io.Reader, name string) io.Reader {
	switch name {
	case EncodingBig5:
		return transform.NewReader(r, traditionalchinese.Big5.NewDecoder())
	case EncodingGBK:
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	default:
		return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
	}
}

func decodes(name string, sample []byte) bool {
	switch name {
	case EncodingUTF8:
		return utf8.Valid(trimPartialRune(sample))
	case EncodingUTF8BOM:
		return bytes.HasPrefix(sample, utf8BOM) && utf8.Valid(trimPartialRune(sample[len(utf8BOM):]))
	case EncodingBig5:
		return decodesWith(traditionalchinese.Big5.NewDecoder(), sample)
	case EncodingGBK:
		return decodesWith(simplifiedchinese.GBK.NewDecoder(), sample)
	}
	return false
}

func decodesWith(dec *encoding.Decoder, sample []byte) bool {
	out, err := dec.Bytes(sample)
	if err != nil {
		return false
	}
	// x/text decoders substitute U+FFFD instead of failing
	return !bytes.ContainsRune(out, utf8.RuneError)
}

// trimPartialRune drops a multi-byte sequence the sample may have cut short
func trimPartialRune(sample []byte) []byte {
	end := len(sample)
	for end > 0 && end > len(sample)-utf8.UTFMax {
		if r, _ := utf8.DecodeLastRune(sample[:end]); r != utf8.RuneError {
			break
		}
		end--
	}
	return sample[:end]
}
