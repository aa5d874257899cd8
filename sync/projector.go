// ABOUTME: Projection of canonical contacts into FSI patron payloads
// ABOUTME: Derives role, room, classgrade and external id from the contact kind
package sync

import "github.com/harperreed/patronsync/models"

// Project builds the set_patron payload for a contact. The email doubles as
// barcode and username; an absent email projects to "".
func Project(contact models.ContactRecord) models.PatronPayload {
	email := contact.EmailValue()
	payload := models.PatronPayload{
		Barcode:    email,
		Username:   email,
		ExternalID: contact.Identifier,
		Firstname:  contact.FirstName,
		Surname:    contact.Surname,
		Email:      email,
	}

	switch contact.Kind {
	case models.KindStudent:
		payload.Role = models.RoleStudent
		payload.Classgrade = TrimClassgrade(contact.FormShortName)
	default:
		payload.Role = models.RoleTeacher
		payload.Classgrade = models.ClassgradeStaff
	}
	payload.Room = payload.Role

	return payload
}
