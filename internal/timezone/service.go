// Package timezone resolves IANA timezone names for request coordinates.
// Air-quality queries need the local hour at the sender's position.
package timezone

import (
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// Service looks up the timezone covering a coordinate.
type Service interface {
	GetTimezone(latitude, longitude float64) (string, error)
}

type service struct {
	finder tzf.F
}

var (
	instance *service
	once     sync.Once
)

// NewService creates or returns the shared lookup service. The tzf finder
// loads its polygon data into memory once, so the instance is process-wide.
func NewService() (Service, error) {
	var err error
	once.Do(func() {
		finder, findErr := tzf.NewDefaultFinder()
		if findErr != nil {
			err = fmt.Errorf("failed to initialize timezone finder: %w", findErr)
			return
		}
		instance = &service{finder: finder}
	})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("timezone finder initialization previously failed")
	}
	return instance, nil
}

// GetTimezone returns the IANA name, e.g. "America/Vancouver", for the
// coordinate.
func (s *service) GetTimezone(latitude, longitude float64) (string, error) {
	name := s.finder.GetTimezoneName(longitude, latitude)
	if name == "" {
		return "", fmt.Errorf("no timezone found for lat=%v, lon=%v", latitude, longitude)
	}
	return name, nil
}
