package models

// BookingDraft is the record posted to /api/parcels/book.
type BookingDraft struct {
	TrackingID          string        `json:"trackingId,omitempty"`
	PickupAddress       Address       `json:"pickupAddress"`
	DeliveryAddress     Address       `json:"deliveryAddress"`
	ParcelDetails       ParcelDetails `json:"parcelDetails"`
	Payment             Payment       `json:"payment"`
	Priority            Priority      `json:"priority"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
}

func NewBookingDraft() BookingDraft {
	return BookingDraft{
		ParcelDetails: ParcelDetails{Type: ParcelTypeOther},
		Payment:       Payment{Type: PaymentPrepaid},
		Priority:      PriorityStandard,
	}
}
