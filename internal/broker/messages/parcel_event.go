package messages

import (
	"encoding/json"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/pkg/errors"
)

// Event names as emitted by the courier server.
const (
	ParcelUpdated = "parcel-updated"
	NewParcel     = "new-parcel"
)

func KnownEvent(name string) bool {
	return name == ParcelUpdated || name == NewParcel
}

// ParcelEvent is one record on the parcel events topic: key is the event
// name, value is the parcel document as the server sent it.
type ParcelEvent struct {
	Name   string
	Parcel models.Parcel
	Raw    json.RawMessage
}

func Decode(key, value []byte) (ParcelEvent, error) {
	name := string(key)
	if !KnownEvent(name) {
		return ParcelEvent{}, errors.Errorf("unknown parcel event %q", name)
	}
	var p models.Parcel
	if err := json.Unmarshal(value, &p); err != nil {
		return ParcelEvent{}, errors.Wrap(err, "decode parcel")
	}
	if p.ID == "" {
		return ParcelEvent{}, errors.New("parcel event without id")
	}
	return ParcelEvent{Name: name, Parcel: p, Raw: append(json.RawMessage(nil), value...)}, nil
}

// Encode returns key/value for the topic. Raw is reused when present.
func (e ParcelEvent) Encode() ([]byte, []byte, error) {
	if len(e.Raw) > 0 {
		return []byte(e.Name), e.Raw, nil
	}
	b, err := json.Marshal(e.Parcel)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode parcel")
	}
	return []byte(e.Name), b, nil
}
