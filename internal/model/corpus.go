package model

import "time"

// MaxSurah is the number of chapters in the corpus.
const MaxSurah = 114

// WordEntry is one row of the word dictionary.
// Translations maps a language code ("en", "ur") to the meaning in that language.
type WordEntry struct {
	WordID       string            `json:"wordId"`
	Arabic       string            `json:"arabic"`
	Diacritics   string            `json:"diacritics"`
	Translations map[string]string `json:"translations"`
}

// WordPosition maps a word coordinate to a dictionary word.
type WordPosition struct {
	Surah    int    `json:"surah"`
	Ayah     int    `json:"ayah"`
	Position int    `json:"position"`
	WordID   string `json:"wordId"`
}

// VerseWord is one slot of an assembled verse.
//
// Orphan is true when WordID has no dictionary entry; Arabic and Meanings
// are then empty. Callers only see orphans when they chose to degrade
// instead of failing on apperror.ErrOrphanWord.
type VerseWord struct {
	WordID   string            `json:"wordId"`
	Position int               `json:"position"`
	Arabic   string            `json:"arabic"`
	Meanings map[string]string `json:"meanings"`
	Orphan   bool              `json:"orphan,omitempty"`
}

// VerseTranslation is the text of one verse in one language.
type VerseTranslation struct {
	Surah       int    `json:"surah"`
	Ayah        int    `json:"ayah"`
	Language    string `json:"language"`
	Arabic      string `json:"arabic"`
	Translation string `json:"translation"`
}

// SearchResult is one verse matching a search query.
type SearchResult struct {
	Surah       int    `json:"surah"`
	Ayah        int    `json:"ayah"`
	Arabic      string `json:"arabic"`
	Translation string `json:"translation"`
}

// ImportTable names a table the import reconciler can replace.
type ImportTable string

const (
	TableDictionary   ImportTable = "dictionary"
	TableWordMapping  ImportTable = "word_positions"
	TableTranslations ImportTable = "verse_translations"
)

// ImportRun is the audit record of one wholesale table replacement.
// Digest is the BLAKE3 hash of the raw batch as it was received.
type ImportRun struct {
	ID         string      `json:"id"`
	Table      ImportTable `json:"table"`
	Language   string      `json:"language,omitempty"`
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Digest     string      `json:"digest"`
	ImportedBy string      `json:"importedBy"`
	CreatedAt  time.Time   `json:"createdAt"`
}
