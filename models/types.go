// ABOUTME: Data models for roster and patron records
// ABOUTME: Defines raw Edumate contact shapes, canonical contacts, FSI patrons and payloads
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind tags a canonical contact with the roster it came from.
type Kind int

const (
	KindStaff Kind = iota
	KindStudent
)

func (k Kind) String() string {
	switch k {
	case KindStudent:
		return "student"
	case KindStaff:
		return "staff"
	}
	return "unknown"
}

// MarshalText lets Kind render as its name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RawContact is one record from either Edumate roster endpoint. The students
// endpoint fills the flat fields; the staff contacts endpoint fills GeneralInfo.
// StudentNumber is non-nil whenever the student_number key was present.
type RawContact struct {
	StudentNumber *string `json:"student_number,omitempty"`
	EmailAddress  *string `json:"email_address,omitempty"`
	FirstName     string  `json:"first_name,omitempty"`
	Surname       string  `json:"surname,omitempty"`
	FormShortName string  `json:"form_short_name,omitempty"`

	GeneralInfo *GeneralInfo `json:"general_info,omitempty"`
}

// UnmarshalJSON marks a student whenever the student_number key exists, even
// when its value is null.
func (c *RawContact) UnmarshalJSON(data []byte) error {
	type plain RawContact
	var aux struct {
		*plain
		StudentNumber json.RawMessage `json:"student_number"`
	}
	aux.plain = (*plain)(c)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	c.StudentNumber = nil
	if v, ok := keys["student_number"]; ok {
		s := flexString(v)
		c.StudentNumber = &s
	}
	return nil
}

// GeneralInfo is the nested identity block of a staff contact.
type GeneralInfo struct {
	EmailAddress     *string            `json:"email_address"`
	Firstname        string             `json:"firstname"`
	Surname          string             `json:"surname"`
	ContactReference []ContactReference `json:"contact_reference"`
}

// ContactReference links a contact to one of its roles in Edumate.
type ContactReference struct {
	ContactType string `json:"contact_type"`
	StaffNumber string `json:"staff_number,omitempty"`
}

// UnmarshalJSON tolerates numeric staff numbers, which some Edumate tenants emit.
func (r *ContactReference) UnmarshalJSON(data []byte) error {
	var aux struct {
		ContactType string          `json:"contact_type"`
		StaffNumber json.RawMessage `json:"staff_number"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ContactType = aux.ContactType
	r.StaffNumber = flexString(aux.StaffNumber)
	return nil
}

// ContactRecord is the canonical form of a roster contact. FormShortName is
// only meaningful when Kind is KindStudent.
type ContactRecord struct {
	Kind          Kind    `json:"kind"`
	Identifier    string  `json:"identifier"`
	Email         *string `json:"email"`
	FirstName     string  `json:"first_name"`
	Surname       string  `json:"surname"`
	FormShortName string  `json:"form_short_name,omitempty"`
}

// EmailValue returns the contact email, or "" when it is absent.
func (c ContactRecord) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PatronRecord is a patron as listed by FSI search_patron. Only the fields
// used for matching and display are decoded.
type PatronRecord struct {
	Username   string `json:"username"`
	Firstname  string `json:"firstname"`
	Surname    string `json:"surname"`
	Classgrade string `json:"classgrade"`
	Barcode    string `json:"barcode,omitempty"`
	Email      string `json:"email,omitempty"`
	ExternalID string `json:"externalid,omitempty"`
	Role       string `json:"role,omitempty"`
	Room       string `json:"room,omitempty"`
}

// UnmarshalJSON accepts nulls and numbers where FSI is loose about types.
func (p *PatronRecord) UnmarshalJSON(data []byte) error {
	var aux map[string]json.RawMessage
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Username = flexString(aux["username"])
	p.Firstname = flexString(aux["firstname"])
	p.Surname = flexString(aux["surname"])
	p.Classgrade = flexString(aux["classgrade"])
	p.Barcode = flexString(aux["barcode"])
	p.Email = flexString(aux["email"])
	p.ExternalID = flexString(aux["externalid"])
	p.Role = flexString(aux["role"])
	p.Room = flexString(aux["room"])
	return nil
}

// PatronPayload is the set_patron body for one patron.
type PatronPayload struct {
	Barcode    string `json:"barcode" yaml:"barcode"`
	Username   string `json:"username" yaml:"username"`
	ExternalID string `json:"externalid" yaml:"externalid"`
	Firstname  string `json:"firstname" yaml:"firstname"`
	Surname    string `json:"surname" yaml:"surname"`
	Email      string `json:"email" yaml:"email"`
	Classgrade string `json:"classgrade" yaml:"classgrade"`
	Room       string `json:"room" yaml:"room"`
	Role       string `json:"role" yaml:"role"`
}

// Fields returns the payload as form fields in a stable order.
func (p PatronPayload) Fields() [][2]string {
	return [][2]string{
		{"barcode", p.Barcode},
		{"username", p.Username},
		{"externalid", p.ExternalID},
		{"firstname", p.Firstname},
		{"surname", p.Surname},
		{"email", p.Email},
		{"classgrade", p.Classgrade},
		{"room", p.Room},
		{"role", p.Role},
	}
}

// Role and room values written to FSI.
const (
	RoleStudent = "Student"
	RoleTeacher = "Teacher"

	ClassgradeStaff = "Staff"
)

// Sync run status constants.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Patron write actions recorded in the sync log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

type SyncRun struct {
	ID           uuid.UUID  `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	DryRun       bool       `json:"dry_run"`
	Contacts     int        `json:"contacts"`
	Patrons      int        `json:"patrons"`
	Creates      int        `json:"creates"`
	Updates      int        `json:"updates"`
	Skipped      int        `json:"skipped"`
	Failures     int        `json:"failures"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

type SyncLogEntry struct {
	ID        string    `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	LoggedAt  time.Time `json:"logged_at"`
}

// flexString decodes a JSON string, number or null into a string.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
