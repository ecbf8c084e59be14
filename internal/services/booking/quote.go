package booking

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
)

// FlatPrice is charged for every parcel regardless of weight and type.
const FlatPrice = 110.0

const (
	trackingPrefix   = "CMS"
	trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	trackingSuffix   = 5
)

// Demo coordinates until addresses are geocoded.
var (
	PickupCoordinates   = models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	DeliveryCoordinates = models.Coordinates{Lat: 40.7589, Lng: -73.9851}
)

// Quote returns the amount due once weight and type are known.
func Quote(d models.ParcelDetails) (float64, bool) {
	if d.Weight <= 0 || d.Type == "" {
		return 0, false
	}
	return math.Round(FlatPrice*100) / 100, true
}

// NewTrackingID returns CMS<unix millis><5 uppercase alphanumerics>.
func NewTrackingID(now time.Time) string {
	b := make([]byte, trackingSuffix)
	max := big.NewInt(int64(len(trackingAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(trackingAlphabet)))
		}
		b[i] = trackingAlphabet[n.Int64()]
	}
	return trackingPrefix + strconv.FormatInt(now.UnixMilli(), 10) + string(b)
}
