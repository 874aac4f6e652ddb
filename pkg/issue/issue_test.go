package issue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Sternrassler/jira-search-client/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{
	"expand": "schema,names",
	"startAt": 100,
	"maxResults": 100,
	"total": 250,
	"issues": [
		{
			"expand": "",
			"id": "10001",
			"self": "https://jira.example.com/rest/api/2/issue/10001",
			"key": "FPB-1",
			"fields": {
				"summary": "Fix the login page",
				"status": {"id": "3", "name": "In Progress"},
				"assignee": {"name": "jdoe", "displayName": "J. Doe"},
				"customfield_10100": "FEAT-7"
			}
		},
		{
			"id": "10002",
			"self": "https://jira.example.com/rest/api/2/issue/10002",
			"key": "FPB-2",
			"fields": {"summary": "Write release notes", "assignee": null}
		}
	]
}`

func TestParse_TypedFields(t *testing.T) {
	page, err := Parse[Issue[BasicFields]]([]byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, 250, page.Total)
	assert.Equal(t, 100, page.StartAt)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "FPB-1", first.Key)
	assert.Equal(t, "10001", first.ID)
	assert.Equal(t, "https://jira.example.com/rest/api/2/issue/10001", first.Self)
	assert.Equal(t, "Fix the login page", first.Fields.Summary)
	require.NotNil(t, first.Fields.Status)
	assert.Equal(t, "In Progress", first.Fields.Status.Name)
	require.NotNil(t, first.Fields.Assignee)
	assert.Equal(t, "J. Doe", first.Fields.Assignee.DisplayName)

	assert.Nil(t, page.Items[1].Fields.Assignee)
}

func TestParse_RawFields(t *testing.T) {
	page, err := Parse[RawIssue]([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(page.Items[0].Fields, &fields))
	assert.Equal(t, "FEAT-7", fields["customfield_10100"])
}

func TestParse_EmptyResult(t *testing.T) {
	page, err := Parse[RawIssue]([]byte(`{"startAt":0,"maxResults":100,"total":0,"issues":[]}`))
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html login page", body: `<html><body>Please log in</body></html>`},
		{name: "truncated", body: `{"total": 10, "issues": [`},
		{name: "missing total", body: `{"startAt":0,"issues":[]}`},
		{name: "missing issues", body: `{"startAt":0,"total":3}`},
		{name: "null issues", body: `{"startAt":0,"total":3,"issues":null}`},
		{name: "negative total", body: `{"startAt":0,"total":-1,"issues":[]}`},
		{name: "error envelope", body: `{"errorMessages":["The value 'X' does not exist for the field 'project'."],"errors":{}}`},
		{name: "wrong issue shape", body: `{"total":1,"issues":["FPB-1"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse[Issue[BasicFields]]([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, pagination.ErrMalformedPage), "got %v", err)
		})
	}
}

func TestNewParser(t *testing.T) {
	var parser pagination.Parser[RawIssue] = NewParser[RawIssue]()

	page, err := parser.Parse([]byte(samplePage))
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestFieldsOf(t *testing.T) {
	assert.Equal(t,
		[]string{"summary", "status", "issuetype", "priority", "assignee", "updated"},
		FieldsOf[BasicFields]())
}
