package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLink(t *testing.T) {
	cases := []struct {
		link     string
		q, a     int
		expectOK bool
	}{
		{QuestionLink(7), 7, 0, true},
		{AnswerLink(7, 12), 7, 12, true},
		{"/questions/abc", 0, 0, false},
		{"/questions/3#comment-1", 0, 0, false},
		{"/questions/3#answer-", 0, 0, false},
		{"/users/3", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		q, a, ok := ParseLink(tc.link)
		assert.Equal(t, tc.expectOK, ok, tc.link)
		assert.Equal(t, tc.q, q, tc.link)
		assert.Equal(t, tc.a, a, tc.link)
	}
}

func TestTargetLink(t *testing.T) {
	assert.Equal(t, "/questions/4", TargetLink(TargetQuestion, 4, 4))
	assert.Equal(t, "/questions/4#answer-9", TargetLink(TargetAnswer, 4, 9))
}

func TestParseVoteType(t *testing.T) {
	p, err := ParseVoteType("upvote")
	assert.NoError(t, err)
	assert.Equal(t, PolarityUp, p)
	assert.Equal(t, "upvote", p.VoteType())

	p, err = ParseVoteType("down")
	assert.NoError(t, err)
	assert.Equal(t, "downvote", p.VoteType())

	_, err = ParseVoteType("sideways")
	assert.Error(t, err)
}

func TestParseTargetType(t *testing.T) {
	_, err := ParseTargetType("comment")
	assert.Error(t, err)

	tt, err := ParseTargetType("answer")
	assert.NoError(t, err)
	assert.Equal(t, TargetAnswer, tt)
}
