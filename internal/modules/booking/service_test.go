package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stayreserve/internal/authz"
	"stayreserve/internal/domain"
	"stayreserve/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockReservations struct {
	mock.Mock
}

func (m *MockReservations) Reserve(ctx context.Context, apartmentID, guestID int64, r domain.DateRange, totalPrice float64) (*domain.Booking, error) {
	args := m.Called(ctx, apartmentID, guestID, r, totalPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockReservations) ReleaseBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockReservations) Available(ctx context.Context, apartmentID int64, r domain.DateRange) (bool, error) {
	args := m.Called(ctx, apartmentID, r)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservations) BusyRanges(ctx context.Context, apartmentID int64) ([]domain.DateRange, error) {
	args := m.Called(ctx, apartmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DateRange), args.Error(1)
}

type MockBookingReader struct {
	mock.Mock
}

func (m *MockBookingReader) Get(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingReader) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingReader) ListAll(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

var (
	guestIdentity = &domain.Identity{UserID: 7, Role: domain.RoleGuest}
	adminIdentity = &domain.Identity{UserID: 1, Role: domain.RoleAdmin}
)

func testRange(t *testing.T) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange("2025-08-01", "2025-08-08")
	require.NoError(t, err)
	return r
}

func newTestService(res Reservations, reader BookingReader, pub events.Publisher) *Service {
	return NewService(res, reader, authz.NewGate(), pub, zap.NewNop())
}

func TestCreateBooking_UsesCallerAsGuest(t *testing.T) {
	res := new(MockReservations)
	pub := &recordingPublisher{}
	svc := newTestService(res, new(MockBookingReader), pub)
	r := testRange(t)

	booked := &domain.Booking{ID: "b-1", ApartmentID: 3, GuestID: 7, CheckIn: r.CheckIn, CheckOut: r.CheckOut, TotalPrice: 700}
	res.On("Reserve", mock.Anything, int64(3), int64(7), r, 700.0).Return(booked, nil).Once()

	b, err := svc.CreateBooking(context.Background(), guestIdentity, CreateBookingInput{ApartmentID: 3, Range: r, TotalPrice: 700})
	require.NoError(t, err)
	assert.Equal(t, "b-1", b.ID)
	res.AssertExpectations(t)

	got := pub.published()
	require.Len(t, got, 1)
	assert.Equal(t, events.BookingCreated, got[0].Type)
	assert.Equal(t, "2025-08-01", got[0].CheckIn)
	assert.Equal(t, "2025-08-08", got[0].CheckOut)
}

func TestCreateBooking_RejectsSpoofedGuest(t *testing.T) {
	res := new(MockReservations)
	svc := newTestService(res, new(MockBookingReader), nil)

	_, err := svc.CreateBooking(context.Background(), guestIdentity, CreateBookingInput{ApartmentID: 3, GuestID: 8, Range: testRange(t)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateBooking(context.Background(), nil, CreateBookingInput{ApartmentID: 3, Range: testRange(t)})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	res.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_PublishFailureDoesNotFailBooking(t *testing.T) {
	res := new(MockReservations)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(res, new(MockBookingReader), pub)
	r := testRange(t)

	res.On("Reserve", mock.Anything, int64(3), int64(7), r, 0.0).Return(&domain.Booking{ID: "b-1", ApartmentID: 3, GuestID: 7}, nil)

	_, err := svc.CreateBooking(context.Background(), guestIdentity, CreateBookingInput{ApartmentID: 3, Range: r})
	require.NoError(t, err)
	assert.Len(t, pub.published(), 1)
}

func TestCreateBooking_ConflictIsReturnedNotRetried(t *testing.T) {
	res := new(MockReservations)
	pub := &recordingPublisher{}
	svc := newTestService(res, new(MockBookingReader), pub)
	r := testRange(t)

	res.On("Reserve", mock.Anything, int64(3), int64(7), r, 100.0).Return(nil, domain.ErrDateConflict).Once()

	_, err := svc.CreateBooking(context.Background(), guestIdentity, CreateBookingInput{ApartmentID: 3, Range: r, TotalPrice: 100})
	assert.ErrorIs(t, err, domain.ErrDateConflict)
	res.AssertNumberOfCalls(t, "Reserve", 1)
	assert.Empty(t, pub.published())
}

func TestDeleteBooking(t *testing.T) {
	res := new(MockReservations)
	pub := &recordingPublisher{}
	svc := newTestService(res, new(MockBookingReader), pub)
	r := testRange(t)

	_, err := svc.DeleteBooking(context.Background(), guestIdentity, "b-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.DeleteBooking(context.Background(), nil, "b-1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	res.AssertNotCalled(t, "ReleaseBooking", mock.Anything, mock.Anything)

	res.On("ReleaseBooking", mock.Anything, "b-1").
		Return(&domain.Booking{ID: "b-1", ApartmentID: 3, GuestID: 7, CheckIn: r.CheckIn, CheckOut: r.CheckOut}, nil).Once()
	res.On("ReleaseBooking", mock.Anything, "b-1").Return(nil, nil).Once()

	removed, err := svc.DeleteBooking(context.Background(), adminIdentity, "b-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.DeleteBooking(context.Background(), adminIdentity, "b-1")
	require.NoError(t, err)
	assert.False(t, removed)

	got := pub.published()
	require.Len(t, got, 1, "only the real deletion is announced")
	assert.Equal(t, events.BookingDeleted, got[0].Type)
}

func TestGetBooking_OwnerOrAdmin(t *testing.T) {
	reader := new(MockBookingReader)
	svc := newTestService(new(MockReservations), reader, nil)

	reader.On("Get", mock.Anything, "b-1").Return(&domain.Booking{ID: "b-1", GuestID: 7}, nil)
	reader.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	_, err := svc.GetBooking(context.Background(), guestIdentity, "b-1")
	assert.NoError(t, err)
	_, err = svc.GetBooking(context.Background(), adminIdentity, "b-1")
	assert.NoError(t, err)

	stranger := &domain.Identity{UserID: 8, Role: domain.RoleGuest}
	_, errExisting := svc.GetBooking(context.Background(), stranger, "b-1")
	_, errMissing := svc.GetBooking(context.Background(), stranger, "missing")
	assert.ErrorIs(t, errExisting, domain.ErrNotFound)
	assert.ErrorIs(t, errMissing, domain.ErrNotFound)
	assert.NotErrorIs(t, errExisting, domain.ErrForbidden, "existing ids look the same as missing ones")

	_, err = svc.GetBooking(context.Background(), adminIdentity, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetBooking(context.Background(), nil, "b-1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestListing(t *testing.T) {
	reader := new(MockBookingReader)
	svc := newTestService(new(MockReservations), reader, nil)

	reader.On("ListByUser", mock.Anything, int64(7)).Return([]domain.Booking{{ID: "b-1", GuestID: 7}}, nil)
	reader.On("ListByUser", mock.Anything, int64(8)).Return([]domain.Booking{}, nil)
	reader.On("ListAll", mock.Anything).Return([]domain.Booking{{ID: "b-1"}, {ID: "b-2"}}, nil)

	own, err := svc.ListForUser(context.Background(), guestIdentity, 7)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = svc.ListForUser(context.Background(), guestIdentity, 8)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ListForUser(context.Background(), adminIdentity, 8)
	assert.NoError(t, err)

	_, err = svc.ListAll(context.Background(), guestIdentity)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	all, err := svc.ListAll(context.Background(), adminIdentity)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOutcomeLabels(t *testing.T) {
	assert.Equal(t, "committed", outcome(nil))
	assert.Equal(t, "conflict", outcome(domain.ErrDateConflict))
	assert.Equal(t, "busy", outcome(domain.ErrBusy))
	assert.Equal(t, "invalid", outcome(domain.ErrInvalidPrice))
	assert.Equal(t, "error", outcome(errors.New("x")))
}
