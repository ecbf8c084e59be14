package booking

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/pkg/errors"
)

type Step int

const (
	StepAddresses Step = iota + 1
	StepParcel
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepAddresses:
		return "Addresses"
	case StepParcel:
		return "Parcel Details"
	case StepPayment:
		return "Payment"
	}
	return "Unknown"
}

const toastDuration = 3 * time.Second

var (
	ErrNotFinalStep = errors.New("booking can only be submitted from the payment step")
	ErrNoSession    = errors.New("no active session")
	ErrSubmitting   = errors.New("booking is already being submitted")
)

type API interface {
	BookParcel(ctx context.Context, token string, draft models.BookingDraft) (models.Parcel, error)
}

type Session interface {
	Token() string
}

type Notifier interface {
	Notify(message string, kind models.NotificationKind, duration time.Duration) string
}

// Wizard collects a booking over three steps and submits it as one record.
type Wizard struct {
	api     API
	session Session
	notify  Notifier
	now     func() time.Time

	mu         sync.Mutex
	step       Step
	draft      models.BookingDraft
	submitting bool
}

func NewWizard(api API, session Session, notify Notifier) *Wizard {
	return &Wizard{
		api:     api,
		session: session,
		notify:  notify,
		now:     time.Now,
		step:    StepAddresses,
		draft:   models.NewBookingDraft(),
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Draft() models.BookingDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) SetPickup(a models.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.PickupAddress = a
}

func (w *Wizard) SetDelivery(a models.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.DeliveryAddress = a
}

// SetParcelDetails also refreshes the quoted amount.
func (w *Wizard) SetParcelDetails(d models.ParcelDetails) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.ParcelDetails = d
	if amount, ok := Quote(d); ok {
		w.draft.Payment.Amount = amount
	}
}

func (w *Wizard) SetPriority(p models.Priority) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Priority = p
}

func (w *Wizard) SetSpecialInstructions(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.SpecialInstructions = s
}

func (w *Wizard) SetPaymentType(t models.PaymentType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Payment.Type = t
}

// Validate checks the fields of the current step.
func (w *Wizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return validateStep(w.step, w.draft)
}

// Next advances when the current step is valid. It is a no-op on the last step.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := validateStep(w.step, w.draft); err != nil {
		return err
	}
	if w.step < StepPayment {
		w.step++
	}
	return nil
}

func (w *Wizard) Previous() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepAddresses {
		w.step--
	}
}

func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepAddresses
	w.draft = models.NewBookingDraft()
}

// Submit posts the booking and returns the redirect target. Validation
// failures are returned without a request or a notification.
func (w *Wizard) Submit(ctx context.Context) (string, models.Parcel, error) {
	w.mu.Lock()
	if w.step != StepPayment {
		w.mu.Unlock()
		return "", models.Parcel{}, ErrNotFinalStep
	}
	if w.submitting {
		w.mu.Unlock()
		return "", models.Parcel{}, ErrSubmitting
	}
	if err := validateAll(w.draft); err != nil {
		w.mu.Unlock()
		return "", models.Parcel{}, err
	}
	draft := w.draft
	w.submitting = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	token := w.session.Token()
	if token == "" {
		w.notify.Notify("Failed to book parcel", models.NotificationError, toastDuration)
		return "", models.Parcel{}, ErrNoSession
	}

	draft.TrackingID = NewTrackingID(w.now())
	pickup, delivery := PickupCoordinates, DeliveryCoordinates
	draft.PickupAddress.Coordinates = &pickup
	draft.DeliveryAddress.Coordinates = &delivery

	p, err := w.api.BookParcel(ctx, token, draft)
	if err != nil {
		w.notify.Notify("Failed to book parcel", models.NotificationError, toastDuration)
		return "", models.Parcel{}, errors.Wrap(err, "book parcel")
	}
	w.notify.Notify("Parcel booked successfully!", models.NotificationSuccess, toastDuration)
	w.Reset()
	return "/dashboard", p, nil
}
