package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		cands    []string
		original string
		want     string
	}{
		{"subsumption", []string{"10h", "10h sáng"}, "họp lúc 10h sáng", "10h sáng"},
		{"duplicates", []string{"mai", "mai", " mai "}, "họp mai", "mai"},
		{"origin order", []string{"sáng mai", "10h"}, "họp 10h sáng mai", "10h sáng mai"},
		{"empty", nil, "họp", ""},
		{"blank only", []string{" ", ""}, "họp", ""},
		{"keeps disjoint", []string{"thứ 6", "tuần sau", "10h"}, "10h thứ 6 tuần sau", "10h thứ 6 tuần sau"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.cands, tt.original))
		})
	}
}

func TestScannerTimes(t *testing.T) {
	s := NewScanner()

	tests := []struct {
		text string
		want []string
	}{
		{"họp lúc 10h sáng mai", []string{"10h", "sáng mai", "mai"}},
		{"nộp báo cáo ngày 20/11", []string{"ngày 20/11"}},
		{"đá bóng chủ nhật", []string{"chủ nhật"}},
		{"đi chơi tuần sau", []string{"tuần sau"}},
		{"ăn cơm", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := s.Times(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScannerLocations(t *testing.T) {
	s := NewScanner()

	assert.Equal(t, []string{"phòng 301"}, s.Locations("họp lúc 10h ở phòng 301"))
	assert.Equal(t, []string{"thư viện"}, s.Locations("học nhóm ở thư viện"))

	text := "gặp bạn tại quán cà phê lúc 9h"
	locs := s.Locations(text)
	assert.Equal(t, []string{"quán cà phê", "quán cà"}, locs)
	assert.Equal(t, "quán cà phê", Merge(locs, text))
	// "ở" inside "mở" is not a preposition.
	assert.Empty(t, s.Locations("mở cửa hàng"))
}

func TestCleanLocation(t *testing.T) {
	assert.Equal(t, "quán cà phê", CleanLocation("quán cà phê sáng"))
	assert.Equal(t, "phòng 301", CleanLocation("phòng 301,"))
	assert.Equal(t, "nhà", CleanLocation("nhà tối nay"))
	assert.Equal(t, "", CleanLocation("mai"))
}

func TestDayContext(t *testing.T) {
	assert.Equal(t, []string{"sáng"}, DayContext("9h sáng"))
	assert.Equal(t, []string{"thứ 6", "tuần sau"}, DayContext("9h thứ 6 tuần sau"))
	assert.Equal(t, []string{"20/11"}, DayContext("8h 20/11"))
	assert.Empty(t, DayContext("10h30"))
}

func TestExtractRangeInheritsContext(t *testing.T) {
	e := NewExtractor(nil, nil)

	res := e.Extract("từ 9h sáng đến 10h")
	assert.Equal(t, "9h sáng", res.Time)
	assert.Equal(t, "10h sáng", res.EndTime)
	assert.True(t, res.EndInherited)
}

func TestExtractRangeKeepsOwnContext(t *testing.T) {
	e := NewExtractor(nil, nil)

	res := e.Extract("trực từ 8h sáng tới 5h chiều ở bệnh viện chợ rẫy")
	assert.Equal(t, "8h sáng", res.Time)
	assert.Equal(t, "5h chiều", res.EndTime)
	assert.False(t, res.EndInherited)
	assert.Equal(t, "bệnh viện chợ rẫy", res.Location)
}

func TestExtractRangeStopsAtComma(t *testing.T) {
	e := NewExtractor(nil, nil)

	res := e.Extract("họp từ 9h đến 11h thứ 2, nhắc trước 10 phút")
	assert.Equal(t, "9h", res.Time)
	assert.Equal(t, "11h thứ 2", res.EndTime)
	assert.False(t, res.EndInherited)
}

func TestExtractGeneralPath(t *testing.T) {
	e := NewExtractor(nil, nil)

	res := e.Extract("nhắc tôi họp nhóm lúc 10h sáng mai ở phòng 301, nhắc trước 15 phút")
	assert.Equal(t, "10h sáng mai", res.Time)
	assert.Equal(t, "phòng 301", res.Location)
	assert.Empty(t, res.EndTime)
}

func TestExtractUsesTaggerCandidates(t *testing.T) {
	tagger := TaggerFunc(func(string) ([]Token, error) {
		return []Token{
			{Text: "họp", Tag: "O"},
			{Text: "hội trường a", Tag: "B-LOC"},
			{Text: "10h", Tag: "TIME"},
		}, nil
	})
	e := NewExtractor(tagger, nil)

	res := e.Extract("họp 10h sáng ở hội trường a")
	assert.Equal(t, "10h sáng", res.Time)
	assert.Equal(t, "hội trường a", res.Location)
}

func TestExtractDegradesWhenTaggerFails(t *testing.T) {
	want := NewExtractor(nil, nil).Extract("họp lúc 10h sáng mai ở phòng 301")

	failing := TaggerFunc(func(string) ([]Token, error) { return nil, errors.New("model not loaded") })
	got := NewExtractor(failing, nil).Extract("họp lúc 10h sáng mai ở phòng 301")
	assert.Equal(t, want, got)

	panicking := TaggerFunc(func(string) ([]Token, error) { panic("boom") })
	require.NotPanics(t, func() {
		got = NewExtractor(panicking, nil).Extract("họp lúc 10h sáng mai ở phòng 301")
	})
	assert.Equal(t, want, got)
}
