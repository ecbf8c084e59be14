package trackings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	cachemocks "github.com/BearBump/ParcelDesk/internal/cache/mocks"
	"github.com/BearBump/ParcelDesk/internal/integrations/courierapi"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage/pgjournal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type trackerMock struct {
	mock.Mock
}

func (m *trackerMock) Track(ctx context.Context, trackingID string) (models.Parcel, error) {
	args := m.Called(ctx, trackingID)
	return args.Get(0).(models.Parcel), args.Error(1)
}

type journalMock struct {
	mock.Mock
}

func (m *journalMock) Append(ctx context.Context, ev messages.ParcelEvent, receivedAt time.Time) (bool, error) {
	args := m.Called(ctx, ev, receivedAt)
	return args.Bool(0), args.Error(1)
}

func (m *journalMock) ListByTracking(ctx context.Context, trackingID string, limit, offset int) ([]*pgjournal.Entry, error) {
	args := m.Called(ctx, trackingID, limit, offset)
	return args.Get(0).([]*pgjournal.Entry), args.Error(1)
}

func (m *journalMock) Recent(ctx context.Context, limit int) ([]*pgjournal.Entry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*pgjournal.Entry), args.Error(1)
}

type ServiceSuite struct {
	suite.Suite

	api     *trackerMock
	cache   *cachemocks.MockBytesCache
	journal *journalMock
	svc     *Service
}

func (s *ServiceSuite) SetupTest() {
	s.api = &trackerMock{}
	s.cache = &cachemocks.MockBytesCache{}
	s.journal = &journalMock{}
	s.svc = New(s.api, s.cache, s.journal, time.Minute)
}

func (s *ServiceSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
	s.journal.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestTrack_Blank() {
	_, err := s.svc.Track(context.Background(), "   ")
	s.Require().ErrorIs(err, ErrEmptyTrackingID)
	s.Equal("Please enter a tracking ID", err.Error())
}

func (s *ServiceSuite) TestTrack_CacheHit_NoAPI() {
	p := models.Parcel{ID: "p1", TrackingID: "CMS1", Status: models.ParcelStatusInTransit}
	b, _ := json.Marshal(p)
	s.cache.On("Get", mock.Anything, "track:CMS1:current").Return(b, true, nil).Once()

	got, err := s.svc.Track(context.Background(), "CMS1")
	s.Require().NoError(err)
	s.Equal("p1", got.ID)
	s.api.AssertNotCalled(s.T(), "Track", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTrack_MissStoresWithTTL() {
	s.cache.On("Get", mock.Anything, "track:CMS1:current").Return(nil, false, nil).Once()
	s.api.On("Track", mock.Anything, "CMS1").Return(models.Parcel{ID: "p1", TrackingID: "CMS1", Status: models.ParcelStatusPending}, nil).Once()
	s.cache.On("Set", mock.Anything, "track:CMS1:current", mock.Anything, time.Minute).Return(nil).Once()

	got, err := s.svc.Track(context.Background(), "CMS1")
	s.Require().NoError(err)
	s.Equal(models.ParcelStatusPending, got.Status)
}

func (s *ServiceSuite) TestTrack_TerminalCachedLonger() {
	s.cache.On("Get", mock.Anything, "track:CMS2:current").Return(nil, false, errors.New("redis down")).Once()
	s.api.On("Track", mock.Anything, "CMS2").Return(models.Parcel{ID: "p2", TrackingID: "CMS2", Status: models.ParcelStatusDelivered}, nil).Once()
	s.cache.On("Set", mock.Anything, "track:CMS2:current", mock.Anything, 10*time.Minute).Return(errors.New("redis down")).Once()

	_, err := s.svc.Track(context.Background(), "CMS2")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestTrack_NotFound() {
	s.cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, nil)
	s.api.On("Track", mock.Anything, "CMS404").Return(models.Parcel{}, &courierapi.APIError{StatusCode: http.StatusNotFound}).Once()
	s.api.On("Track", mock.Anything, "CMS405").Return(models.Parcel{}, &courierapi.APIError{StatusCode: http.StatusNotFound, Message: "No such parcel"}).Once()

	_, err := s.svc.Track(context.Background(), "CMS404")
	s.Require().True(IsNotFound(err))
	s.Equal("Parcel not found", err.Error())

	_, err = s.svc.Track(context.Background(), "CMS405")
	s.Require().True(IsNotFound(err))
	s.Equal("No such parcel", err.Error())
}

func (s *ServiceSuite) TestApplyEvent_JournalsAndRefreshesCache() {
	ev := messages.ParcelEvent{Name: messages.ParcelUpdated, Parcel: models.Parcel{ID: "p1", TrackingID: "CMS1", Status: models.ParcelStatusFailed}}
	s.journal.On("Append", mock.Anything, ev, mock.Anything).Return(true, nil).Once()
	s.cache.On("Set", mock.Anything, "track:CMS1:current", mock.Anything, 10*time.Minute).Return(nil).Once()

	s.Require().NoError(s.svc.ApplyEvent(context.Background(), ev))
}

func (s *ServiceSuite) TestApplyEvent_JournalError() {
	ev := messages.ParcelEvent{Name: messages.NewParcel, Parcel: models.Parcel{ID: "p1", TrackingID: "CMS1"}}
	s.journal.On("Append", mock.Anything, ev, mock.Anything).Return(false, errors.New("pg down")).Once()

	s.Require().Error(s.svc.ApplyEvent(context.Background(), ev))
	s.Require().Error(s.svc.ApplyEvent(context.Background(), messages.ParcelEvent{}))
}

func (s *ServiceSuite) TestHistory() {
	entries := []*pgjournal.Entry{{ID: 1, TrackingID: "CMS1"}}
	s.journal.On("ListByTracking", mock.Anything, "CMS1", 20, 0).Return(entries, nil).Once()

	got, err := s.svc.History(context.Background(), "CMS1", 20, 0)
	s.Require().NoError(err)
	s.Equal(entries, got)

	_, err = s.svc.History(context.Background(), "", 20, 0)
	s.ErrorIs(err, ErrEmptyTrackingID)
}

func (s *ServiceSuite) TestRecent() {
	entries := []*pgjournal.Entry{{ID: 2, TrackingID: "CMS2"}, {ID: 1, TrackingID: "CMS1"}}
	s.journal.On("Recent", mock.Anything, 50).Return(entries, nil).Once()

	got, err := s.svc.Recent(context.Background(), 50)
	s.Require().NoError(err)
	s.Equal(entries, got)
}

func (s *ServiceSuite) TestWithoutCacheOrJournal() {
	svc := New(s.api, nil, nil, 0)
	s.api.On("Track", mock.Anything, "CMS1").Return(models.Parcel{ID: "p1", TrackingID: "CMS1"}, nil).Once()

	_, err := svc.Track(context.Background(), "CMS1")
	s.Require().NoError(err)
	s.Require().NoError(svc.ApplyEvent(context.Background(), messages.ParcelEvent{Name: messages.NewParcel, Parcel: models.Parcel{ID: "p1"}}))

	h, err := svc.History(context.Background(), "CMS1", 10, 0)
	s.Require().NoError(err)
	s.Nil(h)

	r, err := svc.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Nil(r)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
