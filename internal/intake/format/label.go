package format

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLabelOverrides はキー名から導出できない表示名の既定値。
// 設定 (LABEL_OVERRIDES) で追加・上書きされる。
var DefaultLabelOverrides = map[string]string{
	"website_url": "Website URL",
}

// Labeler turns form field keys into display labels.
type Labeler struct {
	overrides map[string]string
}

// NewLabeler copies overrides so later changes by the caller do not leak in.
func NewLabeler(overrides map[string]string) *Labeler {
	copied := make(map[string]string, len(overrides))
	for key, label := range overrides {
		copied[key] = label
	}
	return &Labeler{overrides: copied}
}

// Label returns the override for key when present, otherwise the derived label.
func (l *Labeler) Label(key string) string {
	if l != nil {
		if label, ok := l.overrides[key]; ok {
			return label
		}
	}
	return DeriveLabel(key)
}

// DeriveLabel は snake_case / camelCase のキーを "Company Name" 形式へ変換する。
func DeriveLabel(key string) string {
	runes := []rune(strings.ReplaceAll(key, "_", " "))

	var builder strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				builder.WriteRune(' ')
			}
		}
		builder.WriteRune(r)
	}

	words := strings.Fields(builder.String())
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

// Singular drops one trailing "s". It is a heuristic: "Address" becomes "Addres".
func Singular(label string) string {
	return strings.TrimSuffix(label, "s")
}
