package fallback

import (
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
)

// seedRequests builds the demo dataset served when the live backend is
// down. It spans every urgency level and several lifecycle states so
// dashboards stay believable offline.
func seedRequests() []*model.EmergencyRequest {
	now := time.Now()

	mk := func(patient string, bt model.BloodType, units int, urgency model.Urgency,
		status model.RequestStatus, fulfilled int, hospital, address, contact, phone, relation string,
		age int, createdAgo time.Duration) *model.EmergencyRequest {

		created := now.Add(-createdAgo)
		a := age
		req := &model.EmergencyRequest{
			ID:              uuid.New(),
			PatientName:     patient,
			PatientAge:      &a,
			BloodType:       bt,
			UnitsNeeded:     units,
			BloodComponent:  model.BloodComponentWholeBlood,
			Urgency:         urgency,
			PriorityScore:   urgency.PriorityScore(),
			HospitalName:    hospital,
			HospitalAddress: address,
			ContactName:     contact,
			ContactPhone:    phone,
			ContactRelation: relation,
			Status:          status,
			FulfilledUnits:  fulfilled,
			ExpiresAt:       created.Add(model.DefaultRequestTTL),
			CreatedAt:       created,
			UpdatedAt:       created,
		}
		if status == model.RequestStatusFulfilled {
			t := created.Add(12 * time.Hour)
			req.FulfilledAt = &t
			req.FulfilledUnits = units
		}
		return req
	}

	return []*model.EmergencyRequest{
		mk("Ramesh Shrestha", model.BloodTypeONeg, 3, model.UrgencyLifeThreatening,
			model.RequestStatusPending, 0,
			"Bir Hospital", "Mahaboudha, Kathmandu",
			"Sunita Shrestha", "+977-980-1111111", "Wife", 42, 2*time.Hour),
		mk("Gita Tamang", model.BloodTypeBPos, 2, model.UrgencyCritical,
			model.RequestStatusMatching, 0,
			"Teaching Hospital", "Maharajgunj, Kathmandu",
			"Dorje Tamang", "+977-980-2222222", "Brother", 35, 5*time.Hour),
		mk("Hari Bahadur Thapa", model.BloodTypeAPos, 4, model.UrgencyCritical,
			model.RequestStatusDonorsFound, 0,
			"Patan Hospital", "Lagankhel, Lalitpur",
			"Maya Thapa", "+977-980-3333333", "Daughter", 67, 8*time.Hour),
		mk("Sarita Gurung", model.BloodTypeABNeg, 2, model.UrgencyUrgent,
			model.RequestStatusPartiallyFulfilled, 1,
			"Grande International Hospital", "Dhapasi, Kathmandu",
			"Prem Gurung", "+977-980-4444444", "Husband", 29, 20*time.Hour),
		mk("Bishnu Maharjan", model.BloodTypeOPos, 1, model.UrgencyUrgent,
			model.RequestStatusPending, 0,
			"Kathmandu Medical College", "Sinamangal, Kathmandu",
			"Rita Maharjan", "+977-980-5555555", "Sister", 51, 26*time.Hour),
		mk("Laxmi Adhikari", model.BloodTypeANeg, 2, model.UrgencyNormal,
			model.RequestStatusPending, 0,
			"Nepal Medical College", "Jorpati, Kathmandu",
			"Krishna Adhikari", "+977-980-6666666", "Son", 58, 30*time.Hour),
		mk("Rajan KC", model.BloodTypeBNeg, 3, model.UrgencyNormal,
			model.RequestStatusFulfilled, 3,
			"Bhaktapur Hospital", "Dudhpati, Bhaktapur",
			"Anita KC", "+977-980-7777777", "Wife", 46, 40*time.Hour),
	}
}
