package entity

import (
	"strings"

	"vnsched/internal/wordre"
)

const (
	dayPattern  = `(?:thứ\s*(?:hai|ba|tư|năm|sáu|bảy|\d+)|chủ\s*nhật|cn)`
	hourPattern = `\d{1,2}(?:h|:|giờ)(?:\d{0,2})?(?:\s*(?:sáng|chiều|tối))?`
)

// Scanner is the regex fallback. Its tables are built once and never
// mutated, so one Scanner can serve concurrent extractions.
type Scanner struct {
	timePatterns []*wordre.Regexp
	locAfterPrep *wordre.Regexp
	locNoun      *wordre.Regexp
}

// NewScanner compiles the pattern tables.
func NewScanner() *Scanner {
	return &Scanner{
		timePatterns: []*wordre.Regexp{
			// 10h sáng thứ 6 tuần sau
			wordre.MustCompile(`(?i)`+hourPattern+`\s*`+dayPattern+`\s*(?:tuần\s*(?:này|sau|tới))?`, wordre.None),
			// thứ 6 (tuần sau) lúc 10h
			wordre.MustCompile(`(?i)`+dayPattern+`\s*(?:tuần\s*(?:tới|sau|này))?\s*(?:lúc\s*)?`+hourPattern, wordre.Both),
			// 10h30, 10 giờ, 9:15
			wordre.MustCompile(`(?i)\d{1,2}\s*(?:h|giờ|:)\s*(?:\d{1,2})?(?:\s*(?:phút|p))?`, wordre.Both),
			// sáng mai, tối nay
			wordre.MustCompile(`(?i)(?:sáng|chiều|tối|trưa|đêm)\s*(?:mai|nay|mốt)?`, wordre.Both),
			// ngày 20/11, 20/11/2025
			wordre.MustCompile(`(?i)(?:ngày\s*)?\d{1,2}/\d{1,2}(?:/\d{2,4})?`, wordre.Both),
			// tuần sau
			wordre.MustCompile(`(?i)tuần\s*(?:sau|này|tới)`, wordre.Both),
			// thứ 6, chủ nhật
			wordre.MustCompile(`(?i)`+dayPattern, wordre.Both),
			// hôm nay, ngày mai, mốt
			wordre.MustCompile(`(?i)(?:hôm\s+nay|hnay|ngày\s+mai|ngày\s+mốt|ngày\s+kia|mai|mốt)`, wordre.Both),
		},
		locAfterPrep: wordre.MustCompile(
			`(?i)(?:tại|ở)\s+([\p{L}\p{N}\s]+?)`+
				`(?:\s+(?:lúc|vào|khi|ngày|thứ|tuần|sáng|chiều|tối)(?:[^\p{L}\p{N}_]|$)|$|[,.;!?])`,
			wordre.Left),
		locNoun: wordre.MustCompile(
			`(?i)(?:phòng|cổng|khu|tòa|nhà|quán|thư\s+viện|trường|bệnh\s+viện|công\s+viên)\s+[\p{L}\p{N}]+`,
			wordre.Left),
	}
}

// Scan returns every time and location candidate, times first. Every pattern
// category runs regardless of what the tagger found.
func (s *Scanner) Scan(text string) []Candidate {
	var out []Candidate
	for _, t := range s.Times(text) {
		out = append(out, Candidate{Text: t, Kind: KindTime, Origin: OriginPattern})
	}
	for _, l := range s.Locations(text) {
		out = append(out, Candidate{Text: l, Kind: KindLoc, Origin: OriginPattern})
	}
	return out
}

// Times returns the distinct time phrases matched by the pattern table, in
// table order.
func (s *Scanner) Times(text string) []string {
	var out []string
	for _, re := range s.timePatterns {
		for _, m := range re.FindAllString(text) {
			out = append(out, strings.TrimSpace(m))
		}
	}
	return distinct(out)
}

// Locations returns the distinct cleaned location phrases: first those that
// follow "tại"/"ở", then place nouns followed by an identifier.
func (s *Scanner) Locations(text string) []string {
	var out []string
	for _, m := range s.locAfterPrep.FindAllStringSubmatch(text) {
		if loc := CleanLocation(m[1]); loc != "" {
			out = append(out, loc)
		}
	}
	for _, m := range s.locNoun.FindAllString(text) {
		if loc := CleanLocation(m); loc != "" {
			out = append(out, loc)
		}
	}
	return distinct(out)
}

var trailingTemporal = map[string]bool{
	"cuối": true, "nay": true, "mai": true, "mốt": true, "tới": true, "này": true,
	"sau": true, "trước": true, "sáng": true, "chiều": true, "tối": true,
	"trưa": true, "đêm": true,
}

// CleanLocation drops temporal words and punctuation stuck to the end of a
// location phrase ("quán cà phê sáng" -> "quán cà phê").
func CleanLocation(loc string) string {
	words := strings.Fields(loc)
	for len(words) > 0 {
		last := strings.TrimRight(words[len(words)-1], ".,;:!?")
		if last == "" || trailingTemporal[strings.ToLower(last)] {
			words = words[:len(words)-1]
			continue
		}
		words[len(words)-1] = last
		break
	}
	return strings.Join(words, " ")
}

func distinct(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
