package internal

import (
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"issue-tracker-api/internal/models"
)

const maxBodyBytes = 1 << 20

// parseIssueFilter turns query parameters into exact-match predicates.
// A parameter is active whenever its key is present, even with an empty value.
func parseIssueFilter(q url.Values, parseID func(string) (string, bool)) models.IssueFilter {
	var f models.IssueFilter

	text := map[string]**string{
		"issue_title": &f.Title,
		"issue_text":  &f.Text,
		"created_by":  &f.CreatedBy,
		"assigned_to": &f.AssignedTo,
		"status_text": &f.StatusText,
	}
	for key, dst := range text {
		if q.Has(key) {
			v := q.Get(key)
			*dst = &v
		}
	}

	if q.Has("_id") {
		if id, ok := parseID(q.Get("_id")); ok {
			f.ID = &id
		} else {
			f.Unmatchable = true
		}
	}

	// Anything other than "true" or "false" leaves the open filter off.
	switch q.Get("open") {
	case "true":
		v := true
		f.Open = &v
	case "false":
		v := false
		f.Open = &v
	}

	for key, dst := range map[string]**time.Time{"created_on": &f.CreatedOn, "updated_on": &f.UpdatedOn} {
		if !q.Has(key) {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, q.Get(key))
		if err != nil {
			f.Unmatchable = true
			continue
		}
		*dst = &ts
	}
	return f
}

// issueBody is a decoded request body. JSON and urlencoded forms land in the same shape.
type issueBody map[string]any

// decodeIssueBody reads a JSON or form body. Anything undecodable yields an empty body.
func decodeIssueBody(r *http.Request) issueBody {
	if r.Body == nil {
		return issueBody{}
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return issueBody{}
	}
	return parseIssueBody(r.Header.Get("Content-Type"), data)
}

func parseIssueBody(contentType string, data []byte) issueBody {
	if len(data) == 0 {
		return issueBody{}
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			log.Printf("issues: ignoring malformed form body: %v", err)
			return issueBody{}
		}
		b := issueBody{}
		for k, v := range values {
			if len(v) > 0 {
				b[k] = v[0]
			}
		}
		return b
	}

	b := issueBody{}
	if err := json.Unmarshal(data, &b); err != nil {
		log.Printf("issues: ignoring malformed json body: %v", err)
		return issueBody{}
	}
	return b
}

// str returns the value under key as text. Missing keys, nulls, false, 0 and
// JSON objects or arrays all read as "", so they count as not sent.
func (b issueBody) str(key string) string {
	switch v := b[key].(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

// text is present only when a non-empty value was sent.
func (b issueBody) text(key string) models.Field[string] {
	if v := b.str(key); v != "" {
		return models.Some(v)
	}
	return models.Field[string]{}
}

// clearable is text, plus an explicit null clears the field.
func (b issueBody) clearable(key string) models.Field[string] {
	if v, ok := b[key]; ok && v == nil {
		return models.Some("")
	}
	return b.text(key)
}

// open accepts a JSON boolean or the literals "true" and "false".
func (b issueBody) open() models.Field[bool] {
	switch v := b["open"].(type) {
	case bool:
		return models.Some(v)
	case string:
		switch v {
		case "true":
			return models.Some(true)
		case "false":
			return models.Some(false)
		}
	}
	return models.Field[bool]{}
}

func (b issueBody) patch() models.IssuePatch {
	return models.IssuePatch{
		Title:      b.text("issue_title"),
		Text:       b.text("issue_text"),
		CreatedBy:  b.text("created_by"),
		AssignedTo: b.clearable("assigned_to"),
		StatusText: b.clearable("status_text"),
		Open:       b.open(),
	}
}
