package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/quran-notes/internal/model"
)

// DUMP FORMATS:
// One record per line, fields separated by '|'. Blank lines and lines
// starting with '#' are ignored. Surrounding whitespace of every field is
// trimmed.
//
//	dictionary:    word_id|arabic|diacritics|en:meaning;ur:meaning
//	mapping:       surah|ayah|position|word_id
//	translations:  surah|ayah|arabic|translation
//
// A line that does not parse is rejected and counted; it never aborts the
// batch. The first record with a given key wins, later duplicates are
// rejected, so a batch can never violate a primary key on insert.

const fieldSep = "|"

// maxLine bounds a single record. Verse translations of the longest ayat
// are a few KB; anything near this is garbage.
const maxLine = 1 << 20

// maxRejections bounds how many rejected lines a Report keeps.
const maxRejections = 100

// Rejection describes one skipped line.
type Rejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Report counts the outcome of parsing a batch.
type Report struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	// Rejections holds the first few rejected lines for diagnostics.
	Rejections []Rejection `json:"rejections,omitempty"`
}

func (r *Report) reject(line int, format string, args ...any) {
	r.Rejected++
	if len(r.Rejections) < maxRejections {
		r.Rejections = append(r.Rejections, Rejection{Line: line, Reason: fmt.Sprintf(format, args...)})
	}
}

// ParseDictionary parses a word dictionary dump.
func ParseDictionary(r io.Reader) ([]model.WordEntry, Report, error) {
	var (
		entries []model.WordEntry
		report  Report
		seen    = map[string]bool{}
	)
	err := eachRecord(r, &report, func(line int, fields []string) {
		if len(fields) != 4 {
			report.reject(line, "expected 4 fields, got %d", len(fields))
			return
		}
		wordID, arabic, diacritics := fields[0], fields[1], fields[2]
		if wordID == "" || arabic == "" {
			report.reject(line, "word_id and arabic are required")
			return
		}
		translations, err := parseMeanings(fields[3])
		if err != nil {
			report.reject(line, "%v", err)
			return
		}
		if seen[wordID] {
			report.reject(line, "duplicate word_id %s", wordID)
			return
		}
		seen[wordID] = true
		entries = append(entries, model.WordEntry{
			WordID:       wordID,
			Arabic:       arabic,
			Diacritics:   diacritics,
			Translations: translations,
		})
		report.Accepted++
	})
	return entries, report, err
}

// ParseMapping parses a word-position mapping dump.
//
// Unknown word ids are accepted here: the dictionary may be imported later,
// and verse assembly reports orphans when it meets them.
func ParseMapping(r io.Reader) ([]model.WordPosition, Report, error) {
	var (
		positions []model.WordPosition
		report    Report
		seen      = map[[3]int]bool{}
	)
	err := eachRecord(r, &report, func(line int, fields []string) {
		if len(fields) != 4 {
			report.reject(line, "expected 4 fields, got %d", len(fields))
			return
		}
		surah, ayah, err := parseVerse(fields[0], fields[1])
		if err != nil {
			report.reject(line, "%v", err)
			return
		}
		position, err := strconv.Atoi(fields[2])
		if err != nil || position < 1 {
			report.reject(line, "invalid position %q", fields[2])
			return
		}
		if fields[3] == "" {
			report.reject(line, "word_id is required")
			return
		}
		key := [3]int{surah, ayah, position}
		if seen[key] {
			report.reject(line, "duplicate position %d:%d:%d", surah, ayah, position)
			return
		}
		seen[key] = true
		positions = append(positions, model.WordPosition{
			Surah: surah, Ayah: ayah, Position: position, WordID: fields[3],
		})
		report.Accepted++
	})
	return positions, report, err
}

// ParseTranslations parses a verse translation dump for one language.
// The translation column may itself contain '|'.
func ParseTranslations(r io.Reader, language string) ([]model.VerseTranslation, Report, error) {
	var (
		verses []model.VerseTranslation
		report Report
		seen   = map[[2]int]bool{}
	)
	err := eachRecord(r, &report, func(line int, fields []string) {
		if len(fields) < 4 {
			report.reject(line, "expected 4 fields, got %d", len(fields))
			return
		}
		surah, ayah, err := parseVerse(fields[0], fields[1])
		if err != nil {
			report.reject(line, "%v", err)
			return
		}
		arabic := fields[2]
		translation := strings.Join(fields[3:], fieldSep)
		if arabic == "" && translation == "" {
			report.reject(line, "verse %d:%d has no text", surah, ayah)
			return
		}
		key := [2]int{surah, ayah}
		if seen[key] {
			report.reject(line, "duplicate verse %d:%d", surah, ayah)
			return
		}
		seen[key] = true
		verses = append(verses, model.VerseTranslation{
			Surah: surah, Ayah: ayah, Language: language, Arabic: arabic, Translation: translation,
		})
		report.Accepted++
	})
	return verses, report, err
}

// eachRecord calls fn for every non-comment line with its trimmed fields.
// Lines that cannot be records at all (over maxLine, not UTF-8) are rejected
// into report without reaching fn. Only a read failure is returned as an
// error.
func eachRecord(r io.Reader, report *Report, fn func(line int, fields []string)) error {
	br := bufio.NewReaderSize(r, 64*1024)

	line := 0
	for {
		text, tooLong, err := readLine(br)
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			return fmt.Errorf("corpus: reading line %d: %w", line+1, err)
		}
		if atEOF && text == "" && !tooLong {
			return nil
		}
		line++

		switch {
		case tooLong:
			report.reject(line, "line exceeds %d bytes", maxLine)
		case !utf8.ValidString(text):
			report.reject(line, "line is not valid UTF-8")
		default:
			if line == 1 {
				text = strings.TrimPrefix(text, "\ufeff")
			}
			text = strings.TrimSpace(text)
			if text != "" && !strings.HasPrefix(text, "#") {
				fields := strings.Split(text, fieldSep)
				for i := range fields {
					fields[i] = strings.TrimSpace(fields[i])
				}
				fn(line, fields)
			}
		}

		if atEOF {
			return nil
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLine is still consumed to its end, so the next call starts on the
// following line, but only tooLong is reported for it.
func readLine(br *bufio.Reader) (text string, tooLong bool, err error) {
	var (
		buf, chunk []byte
		n          int
	)
	for {
		chunk, err = br.ReadSlice('\n')
		n += len(chunk)
		if n <= maxLine+2 { // room for "\r\n"
			buf = append(buf, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		text = strings.TrimRight(string(buf), "\r\n")
		return text, n > len(buf) || len(text) > maxLine, err
	}
}

func parseVerse(surahField, ayahField string) (surah, ayah int, err error) {
	surah, err = strconv.Atoi(surahField)
	if err != nil || surah < 1 || surah > model.MaxSurah {
		return 0, 0, fmt.Errorf("invalid surah %q", surahField)
	}
	ayah, err = strconv.Atoi(ayahField)
	if err != nil || ayah < 1 {
		return 0, 0, fmt.Errorf("invalid ayah %q", ayahField)
	}
	return surah, ayah, nil
}

// parseMeanings parses "en:Allah;ur:اللہ". An empty field is an empty map.
func parseMeanings(field string) (map[string]string, error) {
	meanings := map[string]string{}
	if field == "" {
		return meanings, nil
	}
	for _, part := range strings.Split(field, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lang, meaning, ok := strings.Cut(part, ":")
		lang, meaning = strings.TrimSpace(lang), strings.TrimSpace(meaning)
		if !ok || lang == "" {
			return nil, fmt.Errorf("malformed translation %q, want lang:meaning", part)
		}
		meanings[lang] = meaning
	}
	return meanings, nil
}
