// ABOUTME: Identity normalizer for raw Edumate contacts
// ABOUTME: Folds the student and staff record shapes into one canonical ContactRecord
package sync

import "github.com/harperreed/patronsync/models"

const staffContactType = "staff"

// Normalize converts a raw roster contact into its canonical form. It never
// fails: missing fields come through as empty or absent values.
func Normalize(raw models.RawContact) models.ContactRecord {
	if raw.StudentNumber != nil {
		return models.ContactRecord{
			Kind:          models.KindStudent,
			Identifier:    *raw.StudentNumber,
			Email:         raw.EmailAddress,
			FirstName:     raw.FirstName,
			Surname:       raw.Surname,
			FormShortName: raw.FormShortName,
		}
	}

	record := models.ContactRecord{Kind: models.KindStaff}
	if raw.GeneralInfo == nil {
		return record
	}

	record.Email = raw.GeneralInfo.EmailAddress
	record.FirstName = raw.GeneralInfo.Firstname
	record.Surname = raw.GeneralInfo.Surname
	record.Identifier, _ = staffNumber(raw.GeneralInfo.ContactReference)
	return record
}

// StaffNumberMissing reports whether a raw staff contact has no staff
// reference entry, in which case its identifier degrades to "".
func StaffNumberMissing(raw models.RawContact) bool {
	if raw.StudentNumber != nil {
		return false
	}
	if raw.GeneralInfo == nil {
		return true
	}
	_, ok := staffNumber(raw.GeneralInfo.ContactReference)
	return !ok
}

// staffNumber returns the staff number of the first staff reference.
func staffNumber(refs []models.ContactReference) (string, bool) {
	for _, ref := range refs {
		if ref.ContactType == staffContactType {
			return ref.StaffNumber, true
		}
	}
	return "", false
}
