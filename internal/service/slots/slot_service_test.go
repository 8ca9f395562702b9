package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockCache) SetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date, slots []domain.Slot) error {
	args := m.Called(ctx, doctorID, date, slots)
	return args.Error(0)
}

func (m *MockCache) InvalidateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) error {
	args := m.Called(ctx, doctorID, date)
	return args.Error(0)
}

var (
	day = domain.Date{Year: 2030, Month: time.January, Day: 2}
	at  = func(h, m int) time.Time { return time.Date(2030, 1, 2, h, m, 0, 0, time.UTC) }
)

func window(doctorID uuid.UUID, from, to domain.MinuteOfDay) *domain.Availability {
	return &domain.Availability{DoctorID: doctorID, Date: day, StartTime: from, EndTime: to, IsAvailable: true}
}

func TestTile(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.MinuteOfDay
		want     int
	}{
		{"one hour", 540, 600, 2},
		{"remainder dropped", 540, 615, 2},
		{"shorter than a slot", 540, 560, 0},
		{"whole day", 0, 1440, 48},
		{"odd start", 545, 665, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := Tile(*window(uuid.New(), tt.from, tt.to), time.UTC)
			require.Len(t, slots, tt.want)
			for i, s := range slots {
				assert.Equal(t, domain.SlotDuration, s.End.Sub(s.Start))
				assert.Equal(t, day.At(tt.from, time.UTC).Add(time.Duration(i)*domain.SlotDuration), s.Start)
				if i > 0 {
					assert.Equal(t, slots[i-1].End, s.Start)
				}
			}
		})
	}
}

func TestCovers(t *testing.T) {
	w := *window(uuid.New(), 9*60, 10*60)

	assert.True(t, Covers(w, time.UTC, at(9, 0), at(9, 30)))
	assert.True(t, Covers(w, time.UTC, at(9, 30), at(10, 0)))
	assert.False(t, Covers(w, time.UTC, at(9, 15), at(9, 45)), "not aligned to the tiling")
	assert.False(t, Covers(w, time.UTC, at(9, 45), at(10, 15)), "crosses the window end")
	assert.False(t, Covers(w, time.UTC, at(9, 0), at(10, 0)), "wrong duration")

	w.IsAvailable = false
	assert.False(t, Covers(w, time.UTC, at(9, 0), at(9, 30)))
}

func newEngine(t *testing.T, now time.Time, opts ...Option) (*Service, repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryStore().Repositories()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewService(repos.Availability, repos.Appointments, opts...), repos
}

func TestGenerateSlots_ExcludesBookedAndSorts(t *testing.T) {
	svc, repos := newEngine(t, at(7, 0))
	ctx := context.Background()
	doctor := uuid.New()

	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 14*60, 15*60)))
	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 9*60, 10*60)))
	hidden := window(doctor, 11*60, 12*60)
	hidden.IsAvailable = false
	require.NoError(t, repos.Availability.Create(ctx, hidden))

	booked := &domain.Appointment{DoctorID: doctor, PatientID: uuid.New(), Start: at(9, 30), End: at(10, 0)}
	require.NoError(t, repos.Appointments.CreateRequested(ctx, booked))

	slots, err := svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{
		{Start: at(9, 0), End: at(9, 30)},
		{Start: at(14, 0), End: at(14, 30)},
		{Start: at(14, 30), End: at(15, 0)},
	}, slots)
}

func TestGenerateSlots_DropsStartedSlotsToday(t *testing.T) {
	svc, repos := newEngine(t, at(9, 10))
	ctx := context.Background()
	doctor := uuid.New()
	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 9*60, 10*60)))

	slots, err := svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{{Start: at(9, 30), End: at(10, 0)}}, slots)
}

func TestGenerateSlots_UsesCache(t *testing.T) {
	cache := &MockCache{}
	svc, _ := newEngine(t, at(7, 0), WithCache(cache))
	doctor := uuid.New()
	cached := []domain.Slot{{Start: at(8, 0), End: at(8, 30)}}
	cache.On("GetSlots", mock.Anything, doctor, day).Return(cached, nil).Once()

	slots, err := svc.GenerateSlots(context.Background(), doctor, day)
	require.NoError(t, err)
	assert.Equal(t, cached, slots)
	cache.AssertNotCalled(t, "SetSlots", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateSlots_CacheMissAndFailureFallBackToStore(t *testing.T) {
	cache := &MockCache{}
	svc, repos := newEngine(t, at(7, 0), WithCache(cache))
	ctx := context.Background()
	doctor := uuid.New()
	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 9*60, 10*60)))

	cache.On("GetSlots", mock.Anything, doctor, day).Return(nil, errors.New("redis down")).Once()
	cache.On("SetSlots", mock.Anything, doctor, day, mock.Anything).Return(nil).Once()

	slots, err := svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	cache.AssertExpectations(t)
}

func TestGenerateSlots_NoWindows(t *testing.T) {
	svc, _ := newEngine(t, at(7, 0))
	slots, err := svc.GenerateSlots(context.Background(), uuid.New(), day)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

// memoryCache stores entries in a map and runs afterSet once a list is written.
type memoryCache struct {
	entries  map[string][]domain.Slot
	afterSet func()
}

func (c *memoryCache) key(doctorID uuid.UUID, date domain.Date) string {
	return doctorID.String() + ":" + date.String()
}

func (c *memoryCache) GetSlots(_ context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	return c.entries[c.key(doctorID, date)], nil
}

func (c *memoryCache) SetSlots(_ context.Context, doctorID uuid.UUID, date domain.Date, slots []domain.Slot) error {
	c.entries[c.key(doctorID, date)] = slots
	if c.afterSet != nil {
		c.afterSet()
		c.afterSet = nil
	}
	return nil
}

func (c *memoryCache) InvalidateSlots(_ context.Context, doctorID uuid.UUID, date domain.Date) error {
	delete(c.entries, c.key(doctorID, date))
	return nil
}

func TestGenerateSlots_BookingDuringCacheFillIsNotOffered(t *testing.T) {
	cache := &memoryCache{entries: map[string][]domain.Slot{}}
	svc, repos := newEngine(t, at(7, 0), WithCache(cache))
	ctx := context.Background()
	doctor := uuid.New()
	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 9*60, 10*60)))

	booked := &domain.Appointment{DoctorID: doctor, PatientID: uuid.New(), Start: at(9, 0), End: at(9, 30)}
	cache.afterSet = func() {
		require.NoError(t, repos.Appointments.CreateRequested(ctx, booked))
	}

	slots, err := svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{{Start: at(9, 30), End: at(10, 0)}}, slots)

	slots, err = svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{{Start: at(9, 30), End: at(10, 0)}}, slots, "served from cache")
}

func TestGenerateSlots_FreedSlotReturnsWhileCached(t *testing.T) {
	cache := &memoryCache{entries: map[string][]domain.Slot{}}
	svc, repos := newEngine(t, at(7, 0), WithCache(cache))
	ctx := context.Background()
	doctor := uuid.New()
	require.NoError(t, repos.Availability.Create(ctx, window(doctor, 9*60, 10*60)))

	booked := &domain.Appointment{DoctorID: doctor, PatientID: uuid.New(), Start: at(9, 0), End: at(9, 30)}
	require.NoError(t, repos.Appointments.CreateRequested(ctx, booked))

	slots, err := svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	_, err = repos.Appointments.Transition(ctx, booked.ID, lifecycle.ActionCancel, domain.AppointmentCancelled, "")
	require.NoError(t, err)

	slots, err = svc.GenerateSlots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Len(t, cache.entries, 1)
}
