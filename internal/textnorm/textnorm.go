// Package textnorm canonicalizes raw Vietnamese input and restores the
// diacritics of common unaccented or abbreviated words.
package textnorm

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"vnsched/internal/wordre"
)

var lower = cases.Lower(language.Vietnamese)

// Normalize applies NFC composition, trims, lower-cases and collapses runs of
// whitespace to a single space. It is idempotent.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = lower.String(strings.TrimSpace(text))
	return strings.Join(strings.Fields(text), " ")
}

// defaultDictionary maps unaccented or abbreviated spellings to canonical
// Vietnamese. Keys must stay unaccented so that restoring is idempotent.
var defaultDictionary = map[string]string{
	"toi":       "tôi",
	"nhac":      "nhắc",
	"hop":       "họp",
	"nhom":      "nhóm",
	"luc":       "lúc",
	"gio":       "giờ",
	"sang":      "sáng",
	"mai":       "mai",
	"o":         "ở",
	"phong":     "phòng",
	"truoc":     "trước",
	"phut":      "phút",
	"an toi":    "ăn tối",
	"voi":       "với",
	"gia dinh":  "gia đình",
	"chu nhat":  "chủ nhật",
	"nop bai":   "nộp bài",
	"tap":       "tập",
	"chieu":     "chiều",
	"trua":      "trưa",
	"hom nay":   "hôm nay",
	"ngay mai":  "ngày mai",
	"tuan sau":  "tuần sau",
	"tuan toi":  "tuần tới",
	"nhac nho":  "nhắc nhở",
	"tieng":     "tiếng",
	"thu vien":  "thư viện",
	"benh vien": "bệnh viện",
	"cong vien": "công viên",
}

type substitution struct {
	key string
	re  *wordre.Regexp
	to  string
}

// Restorer expands abbreviations using a fixed dictionary. A Restorer is
// immutable after construction and safe for concurrent use.
type Restorer struct {
	hourToi *wordre.Regexp
	subs    []substitution
}

// hourToi catches "7h toi" / "19:30 toi", where "toi" is the evening marker
// "tối" and not the pronoun "tôi" the dictionary would produce.
const hourToiPattern = `(?i)(\d{1,2}(?:[:h]\d{0,2})?)\s+toi`

// NewRestorer builds a Restorer over the bundled dictionary.
func NewRestorer() *Restorer {
	return NewRestorerWithDictionary(defaultDictionary)
}

// NewRestorerWithDictionary builds a Restorer over dict. Keys are applied
// longest first so multi-word keys win over their sub-tokens.
func NewRestorerWithDictionary(dict map[string]string) *Restorer {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	subs := make([]substitution, 0, len(keys))
	for _, k := range keys {
		subs = append(subs, substitution{
			key: k,
			re:  wordre.MustCompile(`(?i)`+quoteWords(k), wordre.Both),
			to:  dict[k],
		})
	}

	return &Restorer{
		hourToi: wordre.MustCompile(hourToiPattern, wordre.Both),
		subs:    subs,
	}
}

// Restore rewrites the hour+"toi" construction first and then applies the
// dictionary as whole-word, case-insensitive substitutions.
func (r *Restorer) Restore(text string) string {
	text = r.hourToi.ReplaceAllString(text, "${1} tối")
	for _, s := range r.subs {
		text = s.re.ReplaceAllStringFunc(text, func(string) string { return s.to })
	}
	return text
}

// quoteWords escapes k and lets any run of whitespace separate its words.
func quoteWords(k string) string {
	parts := strings.Fields(k)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}
