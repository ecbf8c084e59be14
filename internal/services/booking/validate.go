package booking

import "github.com/BearBump/ParcelDesk/internal/models"

const minWeight = 0.1

func checkAddress(v *models.ValidationError, prefix string, a models.Address) {
	v.Required(prefix+".street", a.Street, "Street address is required")
	v.Required(prefix+".city", a.City, "City is required")
	v.Required(prefix+".state", a.State, "State is required")
	v.Required(prefix+".zipCode", a.ZipCode, "ZIP code is required")
}

func validateStep(step Step, d models.BookingDraft) error {
	var v models.ValidationError
	switch step {
	case StepAddresses:
		checkAddress(&v, "pickupAddress", d.PickupAddress)
		checkAddress(&v, "deliveryAddress", d.DeliveryAddress)
	case StepParcel:
		switch {
		case d.ParcelDetails.Weight == 0:
			v.Add("parcelDetails.weight", "Weight is required")
		case d.ParcelDetails.Weight < minWeight:
			v.Add("parcelDetails.weight", "Weight must be at least 0.1 kg")
		}
		switch {
		case d.ParcelDetails.Type == "":
			v.Add("parcelDetails.type", "Type is required")
		case !d.ParcelDetails.Type.Valid():
			v.Add("parcelDetails.type", "Invalid parcel type")
		}
		switch d.Priority {
		case "", models.PriorityStandard, models.PriorityExpress, models.PriorityUrgent:
		default:
			v.Add("priority", "Invalid priority")
		}
	case StepPayment:
		switch {
		case d.Payment.Type == "":
			v.Add("payment.type", "Payment type is required")
		case !d.Payment.Type.Valid():
			v.Add("payment.type", "Invalid payment type")
		}
		if d.Payment.Amount <= 0 {
			v.Add("payment.amount", "Amount is required")
		}
	}
	return v.Err()
}

func validateAll(d models.BookingDraft) error {
	var all models.ValidationError
	for _, st := range []Step{StepAddresses, StepParcel, StepPayment} {
		if err := validateStep(st, d); err != nil {
			all.Fields = append(all.Fields, err.(*models.ValidationError).Fields...)
		}
	}
	return all.Err()
}
