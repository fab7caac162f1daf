package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator renders a localized description for an error kind.
// data provides the values substituted into {placeholders}: field, schema,
// data, path, format, min, max.
type Translator interface {
	Message(kind string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var templates = map[string]map[string]string{
	"en": {
		"MISSING_PROPERTY":           "Field '{field}' is missing in {schema}: {data}",
		"MISSING_VALUE":              "Required field '{field}' in '{schema}' has NULL value: {data}",
		"PATTERN_NOT_MATCHED":        "'{field}' value '{value}' in {schema} does not conform to format {format}",
		"NUMBER_TOO_SMALL":           "'{field}' value '{value}' in {schema} is smaller than format {format} minimum value {min}",
		"NUMBER_TOO_BIG":             "'{field}' value '{value}' in {schema} is bigger than format {format} maximum value {max}",
		"BROKEN_CONSTRAINT":          "Composition constraint of {schema} is broken: {data}",
		"ONE_OF_CONSTRAINT":          "Exactly one property of the oneOf rule of {schema} should have a value: {data}",
		"NO_MATCHING_MODEL":          "No matching model found",
		"DATA_NOT_MATCHING_CRITERIA": "Data at {path} does not match pagination criteria",
	},
	"ja": {
		"MISSING_PROPERTY":           "フィールド '{field}' が {schema} にありません: {data}",
		"MISSING_VALUE":              "必須フィールド '{field}' ({schema}) の値が NULL です: {data}",
		"PATTERN_NOT_MATCHED":        "{schema} の '{field}' の値 '{value}' はフォーマット {format} に適合しません",
		"NUMBER_TOO_SMALL":           "{schema} の '{field}' の値 '{value}' はフォーマット {format} の最小値 {min} より小さいです",
		"NUMBER_TOO_BIG":             "{schema} の '{field}' の値 '{value}' はフォーマット {format} の最大値 {max} より大きいです",
		"BROKEN_CONSTRAINT":          "{schema} の合成制約が満たされていません: {data}",
		"ONE_OF_CONSTRAINT":          "{schema} の oneOf ルールではちょうど一つのプロパティに値が必要です: {data}",
		"NO_MATCHING_MODEL":          "一致するモデルがありません",
		"DATA_NOT_MATCHING_CRITERIA": "{path} のデータがページング条件に一致しません",
	},
}

func (t dictTranslator) Message(kind string, data map[string]string) string {
	tpl, ok := templates[t.lang][kind]
	if !ok {
		return kind
	}
	if len(data) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches a message for the given kind using the current Translator.
func T(kind string, data map[string]string) string { return current.Load().tr.Message(kind, data) }
