package parcels

import (
	"context"

	"github.com/BearBump/ParcelDesk/internal/models"
)

// StaticLocator always reports the same position. A nil position reports none.
type StaticLocator struct {
	Position *models.Coordinates
}

func (l StaticLocator) Locate(context.Context) (*models.Coordinates, error) {
	if l.Position == nil {
		return nil, nil
	}
	c := *l.Position
	return &c, nil
}
