package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim and collapse", "  Nhắc   tôi\t họp \n nhóm ", "nhắc tôi họp nhóm"},
		{"decomposed input composes", "ho\u0323p", "h\u1ecdp"},
		{"upper case vietnamese", "HỌP NHÓM Ở PHÒNG 301", "họp nhóm ở phòng 301"},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestRestoreLongestKeyFirst(t *testing.T) {
	r := NewRestorer()
	assert.Equal(t, "ăn tối", r.Restore("an toi"))
	assert.Equal(t, "ăn tối với gia đình", r.Restore("an toi voi gia dinh"))
}

func TestRestoreHourToiIsEvening(t *testing.T) {
	r := NewRestorer()

	got := r.Restore("nhac toi hop luc 7h toi")
	assert.Contains(t, got, "7h tối")
	assert.NotContains(t, got, "7h tôi")
	assert.Equal(t, "nhắc tôi họp lúc 7h tối", got)

	assert.Equal(t, "19:30 tối", r.Restore("19:30 toi"))
}

func TestRestoreWholeWordsOnly(t *testing.T) {
	r := NewRestorer()

	// "o" must not be rewritten inside a word, accented or not.
	assert.Equal(t, "đo đạc", r.Restore("đo đạc"))
	assert.Equal(t, "toilet", r.Restore("toilet"))
	assert.Equal(t, "họp ở phòng 2", r.Restore("hop o phong 2"))
}

func TestRestoreIdempotentOnAccentedText(t *testing.T) {
	r := NewRestorer()
	inputs := []string{
		"nhắc tôi họp nhóm lúc 10h sáng mai ở phòng 301",
		"ăn tối với gia đình lúc 7h tối chủ nhật",
		"nộp bài trước 5 giờ chiều thứ 6 tuần sau",
	}
	for _, in := range inputs {
		once := r.Restore(in)
		assert.Equal(t, in, once)
		assert.Equal(t, once, r.Restore(once))
	}
}

func TestRestoreCustomDictionary(t *testing.T) {
	r := NewRestorerWithDictionary(map[string]string{"dh": "đại học", "dh bk": "đại học bách khoa"})
	assert.Equal(t, "đại học bách khoa", r.Restore("dh bk"))
	assert.Equal(t, "đại học", r.Restore("dh"))
}
