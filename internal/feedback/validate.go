package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf16"
)

// Field limits, counted in UTF-16 code units so that clients measuring
// JavaScript string length agree with the server.
const (
	MinTitleLength       = 5
	MaxTitleLength       = 200
	MinDescriptionLength = 10
	MaxDescriptionLength = 5000
	MaxCurrentURLLength  = 2000
)

// DecodeSubmission reads a JSON body and validates it. Unknown fields are
// ignored. Every problem is reported in a single *ValidationError.
func DecodeSubmission(r io.Reader) (Submission, error) {
	raw, err := decodeObject(r)
	if err != nil {
		return Submission{}, err
	}

	verr := &ValidationError{}
	var sub Submission

	if value, ok := stringField(raw, "type", "Type", verr, true); ok {
		if t, valid := ParseType(value); valid {
			sub.Type = t
		} else {
			verr.add("type", "Type must be one of: bug, feature")
		}
	}
	if value, ok := stringField(raw, "title", "Title", verr, true); ok {
		sub.Title = value
	}
	if value, ok := stringField(raw, "description", "Description", verr, true); ok {
		sub.Description = value
	}
	if value, ok := stringField(raw, "currentUrl", "Current URL", verr, false); ok {
		sub.CurrentURL = value
	}

	sub.validateLengths(verr)
	if len(verr.Fields) > 0 {
		return Submission{}, verr
	}
	return sub, nil
}

// decodeObject reads exactly one JSON object. Trailing data after the object
// is rejected.
func decodeObject(r io.Reader) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(r)

	var raw map[string]json.RawMessage
	err := dec.Decode(&raw)
	if err == nil && raw != nil {
		var extra json.RawMessage
		if err = dec.Decode(&extra); err == io.EOF {
			return raw, nil
		}
		if err == nil {
			err = errors.New("trailing data")
		}
	}

	verr := &ValidationError{}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		verr.add("body", fmt.Sprintf("Request body must be at most %d bytes", tooLarge.Limit))
	} else {
		verr.add("body", "Request body must be a JSON object")
	}
	return nil, verr
}

// Validate checks a Submission built in code.
func (s Submission) Validate() error {
	verr := &ValidationError{}
	if _, ok := ParseType(string(s.Type)); !ok {
		verr.add("type", "Type must be one of: bug, feature")
	}
	s.validateLengths(verr)
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s Submission) validateLengths(verr *ValidationError) {
	if !verr.has("title") {
		checkLength(verr, "title", "Title", s.Title, MinTitleLength, MaxTitleLength)
	}
	if !verr.has("description") {
		checkLength(verr, "description", "Description", s.Description, MinDescriptionLength, MaxDescriptionLength)
	}
	if !verr.has("currentUrl") {
		checkLength(verr, "currentUrl", "Current URL", s.CurrentURL, 0, MaxCurrentURLLength)
	}
}

func (e *ValidationError) has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func checkLength(verr *ValidationError, field, label, value string, lo, hi int) {
	n := utf16Length(value)
	switch {
	case n < lo:
		verr.add(field, fmt.Sprintf("%s must be at least %d characters", label, lo))
	case n > hi:
		verr.add(field, fmt.Sprintf("%s must be at most %d characters", label, hi))
	}
}

// stringField reads raw[name] as a string. A JSON null counts as absent.
func stringField(raw map[string]json.RawMessage, name, label string, verr *ValidationError, required bool) (string, bool) {
	value, present := raw[name]
	if !present || string(value) == "null" {
		if required {
			verr.add(name, label+" is required")
		}
		return "", false
	}

	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		verr.add(name, label+" must be a string")
		return "", false
	}
	return s, true
}

func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
