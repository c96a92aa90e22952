package feedback

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, body string) (Submission, *ValidationError) {
	t.Helper()

	sub, err := DecodeSubmission(strings.NewReader(body))
	if err == nil {
		return sub, nil
	}
	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	return sub, verr
}

func TestDecodeSubmissionValid(t *testing.T) {
	sub, verr := decodeString(t, `{
		"type": "feature",
		"title": "Dark mode",
		"description": "Please add a dark theme option.",
		"currentUrl": "https://app.example.com/settings",
		"extra": {"ignored": true}
	}`)
	require.Nil(t, verr)
	assert.Equal(t, TypeFeature, sub.Type)
	assert.Equal(t, "Dark mode", sub.Title)
	assert.Equal(t, "https://app.example.com/settings", sub.CurrentURL)
}

func TestDecodeSubmissionBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		desc    string
		field   string
		message string
	}{
		{"TitleTooShort", "abcd", strings.Repeat("d", 10), "title", "Title must be at least 5 characters"},
		{"TitleTooLong", strings.Repeat("t", 201), strings.Repeat("d", 10), "title", "Title must be at most 200 characters"},
		{"DescriptionTooShort", "abcde", strings.Repeat("d", 9), "description", "Description must be at least 10 characters"},
		{"DescriptionTooLong", "abcde", strings.Repeat("d", 5001), "description", "Description must be at most 5000 characters"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Submission{Type: TypeBug, Title: tc.title, Description: tc.desc}.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.message, err.(*ValidationError).FieldMap()[tc.field])
		})
	}

	require.NoError(t, Submission{Type: TypeBug, Title: "abcde", Description: strings.Repeat("d", 10)}.Validate())
	require.NoError(t, Submission{Type: TypeBug, Title: strings.Repeat("t", 200), Description: strings.Repeat("d", 5000)}.Validate())
}

func TestDecodeSubmissionCountsUTF16Units(t *testing.T) {
	// Each emoji is a surrogate pair, so three of them make six units.
	sub, verr := decodeString(t, `{"type":"bug","title":"🐛🐛🐛","description":"éééééééééé"}`)
	require.Nil(t, verr)
	assert.Equal(t, "🐛🐛🐛", sub.Title)

	_, verr = decodeString(t, `{"type":"bug","title":"`+strings.Repeat("🐛", 101)+`","description":"éééééééééé"}`)
	require.NotNil(t, verr)
	assert.Equal(t, "Title must be at most 200 characters", verr.FieldMap()["title"])

	_, verr = decodeString(t, `{"type":"bug","title":"🐛🐛","description":"éééééééééé"}`)
	require.NotNil(t, verr)
	assert.Equal(t, "Title must be at least 5 characters", verr.FieldMap()["title"])
}

func TestDecodeSubmissionRejectsTrailingData(t *testing.T) {
	valid := `{"type":"bug","title":"Crash on save","description":"Saving a draft crashes the app."}`

	for _, body := range []string{valid + "xyz", valid + `{"type":"bug"}`, valid + " 1"} {
		_, verr := decodeString(t, body)
		require.NotNil(t, verr, body)
		assert.Equal(t, "Request body must be a JSON object", verr.FieldMap()["body"])
	}

	_, verr := decodeString(t, valid+"\n  ")
	assert.Nil(t, verr)
}

func TestDecodeSubmissionCollectsAllErrors(t *testing.T) {
	_, verr := decodeString(t, `{"type":"question","title":42,"currentUrl":"`+strings.Repeat("u", 2001)+`"}`)
	require.NotNil(t, verr)

	fields := verr.FieldMap()
	assert.Equal(t, "Type must be one of: bug, feature", fields["type"])
	assert.Equal(t, "Title must be a string", fields["title"])
	assert.Equal(t, "Description is required", fields["description"])
	assert.Equal(t, "Current URL must be at most 2000 characters", fields["currentUrl"])
	assert.Len(t, verr.Fields, 4)
}

func TestDecodeSubmissionRejectsNonObjects(t *testing.T) {
	for _, body := range []string{"", "not json", "null", "[1,2]", `"text"`} {
		_, verr := decodeString(t, body)
		require.NotNil(t, verr, body)
		assert.Equal(t, "Request body must be a JSON object", verr.FieldMap()["body"])
	}
}

func TestDecodeSubmissionBodyTooLarge(t *testing.T) {
	payload := `{"type":"bug","title":"Large","description":"` + strings.Repeat("x", 2048) + `"}`
	reader := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(strings.NewReader(payload)), 512)
	_, err := DecodeSubmission(reader)
	require.Error(t, err)
	assert.Equal(t, "Request body must be at most 512 bytes", err.(*ValidationError).FieldMap()["body"])
}
