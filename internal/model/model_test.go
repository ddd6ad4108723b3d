package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassedPartsDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want PassedParts
	}{
		{"comma string", `"جزء1, جزء2"`, PassedParts{"جزء1", "جزء2"}},
		{"list", `["جزء1","جزء2"]`, PassedParts{"جزء1", "جزء2"}},
		{"list with blanks", `[" جزء1 ", "", "  "]`, PassedParts{"جزء1"}},
		{"trailing comma", `"عم,"`, PassedParts{"عم"}},
		{"empty string", `""`, PassedParts{}},
		{"null", `null`, PassedParts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PassedParts
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassedPartsAlwaysEncodesList(t *testing.T) {
	var s struct {
		Parts PassedParts `json:"parts"`
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"parts":[]}`, string(b))
}

func TestIDDecoding(t *testing.T) {
	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": " s-7 ", "c": null}`), &got))
	assert.Equal(t, ID("12"), got.A)
	assert.Equal(t, ID("s-7"), got.B)
	assert.Equal(t, ID(""), got.C)
}

func TestIDDecodesReferenceObjects(t *testing.T) {
	var s Student
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "courses": [{"id": 10, "title": "x"}, {"id": "20"}, {"id": null}, 30]}`), &s))
	assert.Equal(t, []ID{"10", "20", "", "30"}, s.Courses)
	assert.True(t, s.EnrolledIn("10"))
	assert.True(t, s.EnrolledIn("20"))

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`{"id": [1]}`), &bad))
}

func TestLessonDisplay(t *testing.T) {
	blank := "  "
	title := "سورة الملك"
	assert.Equal(t, UntitledLesson, Lesson{}.DisplayTitle())
	assert.Equal(t, UntitledLesson, Lesson{Title: &blank}.DisplayTitle())
	assert.Equal(t, title, Lesson{Title: &title}.DisplayTitle())

	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.True(t, Lesson{Date: "2025-03-10"}.Upcoming(now))
	assert.True(t, Lesson{Date: "2025-04-01"}.Upcoming(now))
	assert.False(t, Lesson{Date: "2025-03-09"}.Upcoming(now))
	assert.False(t, Lesson{Date: "not a date"}.Upcoming(now))
}

func TestInstructorNames(t *testing.T) {
	assert.Equal(t, UnknownLabel, InstructorNames(nil))
	assert.Equal(t, "أحمد, خالد", InstructorNames([]Instructor{{Name: "أحمد"}, {Name: ""}, {Name: "خالد"}}))
}

func TestFlagText(t *testing.T) {
	for _, f := range []Flag{Unmarked, Present, Absent} {
		b, err := f.MarshalText()
		require.NoError(t, err)
		var back Flag
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, f, back)
	}
	assert.Error(t, new(Flag).UnmarshalText([]byte("late")))
	assert.False(t, Unmarked.Definite())
}

func TestRecitationPageList(t *testing.T) {
	assert.Equal(t, "", Recitation{}.PageList())
	assert.Equal(t, "3, 4, 5", Recitation{Pages: []int{3, 4, 5}}.PageList())
}
