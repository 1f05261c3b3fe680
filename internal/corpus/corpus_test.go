package corpus

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
)

const mappingDump = `# surah|ayah|position|word_id
2|255|1|A
2|255|2|B

2|255|3|C
2|255|4|D
`

func blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func xzCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// =========================================================================
// ReadBatch
// =========================================================================

func TestReadBatch_Plain(t *testing.T) {
	batch, err := ReadBatch(strings.NewReader(mappingDump), 0)
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, batch.Compression)
	assert.Equal(t, mappingDump, string(batch.Data))
	assert.Equal(t, blake3Hex([]byte(mappingDump)), batch.Digest)
	assert.Len(t, batch.Digest, 64)
}

func TestReadBatch_Decompresses(t *testing.T) {
	cases := map[Compression][]byte{
		CompressionXZ:   xzCompress(t, []byte(mappingDump)),
		CompressionGzip: gzipCompress(t, []byte(mappingDump)),
	}
	for compression, raw := range cases {
		t.Run(string(compression), func(t *testing.T) {
			batch, err := ReadBatch(bytes.NewReader(raw), 0)
			require.NoError(t, err)

			assert.Equal(t, compression, batch.Compression)
			assert.Equal(t, mappingDump, string(batch.Data))
			assert.Equal(t, blake3Hex(raw), batch.Digest, "digest covers the bytes as received")
		})
	}
}

func TestReadBatch_SizeLimitAppliesAfterDecompression(t *testing.T) {
	big := bytes.Repeat([]byte("1|1|1|A\n"), 1000)
	raw := xzCompress(t, big)
	require.Less(t, len(raw), 1000)

	_, err := ReadBatch(bytes.NewReader(raw), 1000)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestReadBatch_CorruptXZ(t *testing.T) {
	raw := xzCompress(t, []byte(mappingDump))
	corrupt := append([]byte{}, raw[:len(raw)/2]...)

	_, err := ReadBatch(bytes.NewReader(corrupt), 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestReadBatch_Empty(t *testing.T) {
	batch, err := ReadBatch(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, batch.Data)
	assert.Equal(t, CompressionNone, batch.Compression)
}

// =========================================================================
// Parsers
// =========================================================================

func TestParseMapping(t *testing.T) {
	positions, report, err := ParseMapping(strings.NewReader(mappingDump))
	require.NoError(t, err)

	assert.Equal(t, Report{Accepted: 4}, report)
	require.Len(t, positions, 4)
	assert.Equal(t, model.WordPosition{Surah: 2, Ayah: 255, Position: 3, WordID: "C"}, positions[2])
}

func TestParseMapping_SkipsMalformedRecords(t *testing.T) {
	dump := strings.Join([]string{
		"1|1|1|A",
		"1|1|x|B",      // position not a number
		"115|1|1|C",    // surah out of range
		"1|0|1|C",      // ayah below 1
		"1|1|0|C",      // position below 1
		"1|1|2",        // missing field
		"1|1|2|",       // empty word id
		"1|1|1|Z",      // duplicate key, first one wins
		"1|1|2|B|xtra", // too many fields
		"1|1|2|B",
	}, "\n")

	positions, report, err := ParseMapping(strings.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 8, report.Rejected)
	require.Len(t, report.Rejections, 8)
	assert.Equal(t, 2, report.Rejections[0].Line)
	assert.Contains(t, report.Rejections[6].Reason, "duplicate")

	require.Len(t, positions, 2)
	assert.Equal(t, "A", positions[0].WordID)
}

func TestParseDictionary(t *testing.T) {
	dump := "\ufeffA | ٱللَّهُ | ٱللَّهُ | en:Allah; ur:اللہ\n" +
		"B|لَآ||\n" +
		"C|إِلَٰهَ||en god\n" + // missing colon
		"|إِلَّا||en:except\n" + // missing id
		"A|dup||en:again\n"

	entries, report, err := ParseDictionary(strings.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 3, report.Rejected)
	require.Len(t, entries, 2)

	assert.Equal(t, "A", entries[0].WordID, "byte order mark is stripped")
	assert.Equal(t, map[string]string{"en": "Allah", "ur": "اللہ"}, entries[0].Translations)
	assert.NotNil(t, entries[1].Translations)
	assert.Empty(t, entries[1].Translations)
}

func TestParseTranslations(t *testing.T) {
	dump := "1|1|بِسْمِ ٱللَّهِ|In the name of Allah\n" +
		"1|2|ٱلْحَمْدُ لِلَّهِ|Praise be to Allah | Lord of the worlds\n" +
		"1|2|dup|dup\n" +
		"1|3||\n"

	verses, report, err := ParseTranslations(strings.NewReader(dump), "en")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Rejected)
	require.Len(t, verses, 2)
	assert.Equal(t, "en", verses[1].Language)
	assert.Equal(t, "Praise be to Allah|Lord of the worlds", verses[1].Translation)
}

func TestParse_LineTooLongIsSkipped(t *testing.T) {
	dump := "1|1|1|A\n1|1|2|B\n" + strings.Repeat("x", maxLine+1) + "\n1|1|3|C\n"

	positions, report, err := ParseMapping(strings.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, 3, report.Rejections[0].Line)
	assert.Contains(t, report.Rejections[0].Reason, "exceeds")
	require.Len(t, positions, 3)
	assert.Equal(t, "C", positions[2].WordID)
}

func TestParse_LineAtLimitIsRead(t *testing.T) {
	prefix := "1|1|1|"
	dump := prefix + strings.Repeat("w", maxLine-len(prefix)) + "\r\n1|1|2|B"

	positions, report, err := ParseMapping(strings.NewReader(dump))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)
	assert.Zero(t, report.Rejected)
	require.Len(t, positions, 2)
	assert.Len(t, positions[0].WordID, maxLine-len(prefix))
}

func TestParse_InvalidUTF8IsSkipped(t *testing.T) {
	dump := "A|ٱللَّهُ||en:Allah\n" +
		"B|\xff\xfe||en:broken\n" +
		"C|رَبِّ||en:Lord\n"

	entries, report, err := ParseDictionary(strings.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, 2, report.Rejections[0].Line)
	assert.Equal(t, []string{"A", "C"}, []string{entries[0].WordID, entries[1].WordID})
}

func TestReport_KeepsBoundedRejections(t *testing.T) {
	dump := strings.Repeat("garbage\n", maxRejections+20)

	_, report, err := ParseMapping(strings.NewReader(dump))
	require.NoError(t, err)
	assert.Equal(t, maxRejections+20, report.Rejected)
	assert.Len(t, report.Rejections, maxRejections)
}
