// ABOUTME: Tests for patron matching and update detection
// ABOUTME: Covers skip pre-checks, first-match resolution and exact field comparison
package sync

import (
	"testing"

	"github.com/harperreed/patronsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDomain = "org.edu"

func student(email, first, last, form string) models.ContactRecord {
	c := models.ContactRecord{Kind: models.KindStudent, Identifier: "S1", FirstName: first, Surname: last, FormShortName: form}
	if email != "" {
		c.Email = strPtr(email)
	}
	return c
}

func staff(email, first, last string) models.ContactRecord {
	c := models.ContactRecord{Kind: models.KindStaff, Identifier: "T1", FirstName: first, Surname: last}
	if email != "" {
		c.Email = strPtr(email)
	}
	return c
}

func TestClassifySkipNoEmail(t *testing.T) {
	patronLists := [][]models.PatronRecord{
		nil,
		{{Username: "x@org.edu"}},
		{{Username: "x@org.edu"}, {Username: "y@org.edu"}},
	}

	for _, patrons := range patronLists {
		d := Classify(student("", "Jo", "Lee", "10"), patrons, testDomain)
		assert.Equal(t, ActionSkip, d.Action)
		assert.Equal(t, SkipNoEmail, d.Reason)
	}
}

func TestClassifySkipNonTargetDomain(t *testing.T) {
	d := Classify(student("jo@gmail.com", "Jo", "Lee", "10"), nil, testDomain)
	assert.Equal(t, ActionSkip, d.Action)
	assert.Equal(t, SkipNonTargetDomain, d.Reason)

	// The pre-check holds even when a patron would match the username.
	d = Classify(student("jo@gmail.com", "Jo", "Lee", "10"), []models.PatronRecord{{Username: "jo@gmail.com"}}, testDomain)
	assert.Equal(t, SkipNonTargetDomain, d.Reason)
}

func TestClassifyCreate(t *testing.T) {
	d := Classify(student("a@org.edu", "Jo", "Lee", "10"), []models.PatronRecord{{Username: "b@org.edu"}}, testDomain)
	assert.Equal(t, ActionCreate, d.Action)
	assert.Nil(t, d.Patron)

	d = Classify(staff("t@org.edu", "Sam", "Ng"), nil, testDomain)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestClassifyNoChangeCaseInsensitiveUsername(t *testing.T) {
	patrons := []models.PatronRecord{{Username: "A@Org.EDU", Firstname: "Jo", Surname: "Lee", Classgrade: "10"}}

	d := Classify(student("a@org.edu", "Jo", "Lee", "10IB"), patrons, testDomain)

	assert.Equal(t, ActionNoChange, d.Action)
	require.NotNil(t, d.Patron)
	assert.Equal(t, "A@Org.EDU", d.Patron.Username)
}

func TestClassifyUpdateFields(t *testing.T) {
	base := models.PatronRecord{Username: "a@org.edu", Firstname: "Jo", Surname: "Lee", Classgrade: "10||"}

	tests := []struct {
		name    string
		contact models.ContactRecord
		action  Action
		field   string
	}{
		{"identical", student("a@org.edu", "Jo", "Lee", "10IB"), ActionNoChange, ""},
		{"firstname differs", student("a@org.edu", "Joanne", "Lee", "10"), ActionUpdate, "firstname"},
		{"firstname case differs", student("a@org.edu", "jo", "Lee", "10"), ActionUpdate, "firstname"},
		{"surname differs", student("a@org.edu", "Jo", "Li", "10"), ActionUpdate, "surname"},
		{"classgrade differs", student("a@org.edu", "Jo", "Lee", "11"), ActionUpdate, "classgrade"},
		{"staff ignores classgrade", staff("a@org.edu", "Jo", "Lee"), ActionNoChange, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.contact, []models.PatronRecord{base}, testDomain)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.field, d.Field)
		})
	}
}

func TestClassifyPipeTrimRegression(t *testing.T) {
	patrons := []models.PatronRecord{{Username: "a@org.edu", Firstname: "Jo", Surname: "Lee", Classgrade: "10|"}}

	d := Classify(student("a@org.edu", "Jo", "Lee", "10"), patrons, testDomain)

	assert.Equal(t, ActionNoChange, d.Action)
}

func TestClassifyFirstMatchWins(t *testing.T) {
	patrons := []models.PatronRecord{
		{Username: "a@org.edu", Firstname: "Old", Surname: "Lee", Classgrade: "10"},
		{Username: "a@org.edu", Firstname: "Jo", Surname: "Lee", Classgrade: "10"},
	}
	d := Classify(student("a@org.edu", "Jo", "Lee", "10"), patrons, testDomain)
	assert.Equal(t, ActionUpdate, d.Action, "later exact patron must not be consulted")
	assert.Same(t, &patrons[0], d.Patron)

	patrons[0], patrons[1] = patrons[1], patrons[0]
	d = Classify(student("a@org.edu", "Jo", "Lee", "10"), patrons, testDomain)
	assert.Equal(t, ActionNoChange, d.Action)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice@Example.com", "alice@example.com"},
		{"alice.smith@example.com", "alice.smith@example.com"},
		{"ALICE@EXAMPLE.COM", "alice@example.com"},
	}

	for _, tt := range tests {
		result := normalizeEmail(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeEmail(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestActionAndReasonStrings(t *testing.T) {
	assert.Equal(t, "create", ActionCreate.String())
	assert.Equal(t, "no-change", ActionNoChange.String())
	assert.Equal(t, "no email", SkipNoEmail.String())
	assert.Equal(t, "non-target domain", SkipNonTargetDomain.String())
}
