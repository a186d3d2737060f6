package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		in  string
		out string
	}{
		{in: "", out: ""},
		{in: "   \n\t ", out: ""},
		{in: "Hello   World!!", out: "hello world"},
		{in: "hello world", out: "hello world"},
		{in: "  a ! b  ", out: "a b"},
		{in: "!!!", out: ""},
		{in: "snake_case_ok", out: "snake_case_ok"},
		{in: "안녕하세요!! 반갑습니다~", out: "안녕하세요 반갑습니다"},
		{in: "Café au lait.", out: "café au lait"},
		{in: "1,000 WON", out: "1000 won"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, Normalize(fix.in), "input %q", fix.in)
	}
}

func TestNormalize_ComposesHangulJamo(t *testing.T) {
	decomposed := "\u1112\u1161\u11ab"
	assert.Equal(t, "\ud55c", Normalize(decomposed))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello   World!!",
		" -- spaced  ,  out -- ",
		"MiXeD\tcase\nlines",
		"이거 진짜 ㅋㅋㅋ 대박!!!",
		"emoji 🎉 party",
		"\u1112!\u1161\u11ab",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_ComposesAfterStripping(t *testing.T) {
	// conjoining jamo split by punctuation compose once it is gone
	assert.Equal(t, "\ud55c", Normalize("\u1112!\u1161\u11ab"))
	assert.Equal(t, Normalize("\ud55c!"), Normalize("\u1112!\u1161\u11ab"))
}
