// Package rules pulls the reminder lead time and the event title out of a
// restored sentence with fixed surface patterns.
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"vnsched/internal/entity"
	appLog "vnsched/internal/log"
	"vnsched/internal/wordre"
)

// EntityExtractor is the part of entity.Extractor the title cleanup needs.
type EntityExtractor interface {
	Extract(text string) entity.Result
}

// Result is what the rules found. An empty Title and a nil ReminderMinutes
// mean "not found".
type Result struct {
	Title           string
	ReminderMinutes *int
}

const pronouns = `(?:giúp\s+tôi|tôi|mình|em|anh|chị|bạn|giúp)`

var (
	offsetRe = wordre.MustCompile(
		`(?i)(?:nhắc|báo)(?:\s+`+pronouns+`)?\s+(?:trước|trc|sớm)\s*(\d+)\s*(phút|p|giờ|h|tiếng|ngày)`,
		wordre.Left)
	danglingVerbRe = wordre.MustCompile(`(?i)(?:nhắc|báo)(?:\s+`+pronouns+`)?\s*$`, wordre.Left)

	// Group 1 is the title: the words after "nhắc tôi", "hãy báo", "nhắc
	// trước" and similar, up to the first temporal keyword.
	afterVerbRe = wordre.MustCompile(
		`(?i)(?:(?:nhắc|báo)\s+(?:giúp\s+tôi|tôi|mình|nhớ)|hãy\s+(?:nhắc|báo)|(?:nhắc|báo)\s+trước)(?:\s+về)?\s*`+
			`(.*?)\s*(?:lúc|vào|sáng|chiều|tối|mai|ngày|,|$)`,
		wordre.Left)
	// First hour-like token or temporal keyword; the title is what precedes it.
	timeKeywordRe = wordre.MustCompile(`(?i)(?:vào\s+lúc|lúc|vào|từ|luc|\d{1,2}\s*(?:h|giờ|:)\d{0,2})`, wordre.Both)

	connectiveRe = wordre.MustCompile(`(?i)(?:từ|đến|tới|lúc|vào)`, wordre.Both)
	leadingDayRe = regexp.MustCompile(`(?i)^\s*(?:hôm nay|ngày mai|mai|hnay)\s+`)
)

var unitMinutes = map[string]int{
	"phút": 1, "p": 1,
	"giờ": 60, "h": 60, "tiếng": 60,
	"ngày": 24 * 60,
}

// Extractor applies the rules. The entity extractor is only used by the last
// title fallback.
type Extractor struct {
	ents EntityExtractor
}

// New returns an Extractor. ents may be nil.
func New(ents EntityExtractor) *Extractor {
	return &Extractor{ents: ents}
}

// Extract returns the reminder offset and the title of text.
func (x *Extractor) Extract(text string) Result {
	var res Result
	work := strings.TrimSpace(text)

	if m := offsetRe.FindStringSubmatch(work); m != nil {
		if qty, err := strconv.Atoi(m[1]); err == nil {
			minutes := qty * unitMinutes[strings.ToLower(m[2])]
			res.ReminderMinutes = &minutes
		}
		work = strings.Trim(strings.ReplaceAll(work, m[0], ""), " ,")
		if loc := danglingVerbRe.FindStringSubmatchIndex(work); loc != nil {
			work = strings.Trim(work[:loc[0]], " ,")
		}
	}

	res.Title = x.title(text, work)
	appLog.Debug("rules extracted", "title", res.Title, "reminder", res.ReminderMinutes != nil)
	return res
}

func (x *Extractor) title(original, work string) string {
	if m := afterVerbRe.FindStringSubmatch(work); m != nil {
		if t := strings.Trim(m[1], " ,."); t != "" {
			return t
		}
	}
	if loc := timeKeywordRe.FindStringSubmatchIndex(work); loc != nil {
		if t := strings.Trim(work[:loc[0]], " ,."); t != "" {
			return t
		}
	}
	return x.stripEntities(original, work)
}

// stripEntities removes the time, end-time and location phrases found in
// original from work, then drops connectives and a leading day word.
func (x *Extractor) stripEntities(original, work string) string {
	cand := work
	if x.ents != nil {
		ents := x.ents.Extract(original)
		for _, phrase := range []string{ents.Time, ents.EndTime, ents.Location} {
			if phrase != "" {
				cand = strings.ReplaceAll(cand, phrase, "")
			}
		}
	}
	cand = connectiveRe.ReplaceAllString(cand, "")
	cand = strings.Join(strings.Fields(cand), " ")
	cand = leadingDayRe.ReplaceAllString(cand, "")
	return strings.Trim(cand, " ,.")
}
