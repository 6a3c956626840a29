package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type stubSource struct {
	cal     *Calendar
	err     error
	release chan struct{}
	calls   []string
	mu      sync.Mutex
}

func (s *stubSource) GetAvailableDates(ctx context.Context, clinicID string) (*Calendar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, clinicID)
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return s.cal, s.err
}

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestLoaderSelectsDefaultDate(t *testing.T) {
	src := &stubSource{cal: &Calendar{
		Window: &catalog.BookingWindow{StartDate: "2024-01-01", EndDate: "2024-12-31"},
		Dates: []AvailableDate{
			{Date: "2024-06-01", Slots: []TimeSlot{{Time: "10:00", Status: SlotAvailable, Available: 2}}},
		},
	}}
	wf := booking.NewWorkflow(booking.DefaultPricing, logging.Discard())
	loader := NewLoader(src, wf, nil, logging.Discard()).
		WithClock(fixedClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))

	cal, err := loader.Refresh(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Len(t, cal.Dates, 1)
	assert.Equal(t, "2024-06-01", wf.State().SelectedDate)
	assert.Equal(t, "clinic-1", loader.ClinicID())
	assert.False(t, loader.Loading())
}

func TestLoaderFailureKeepsSelectionAndNotifies(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	wf := booking.NewWorkflow(booking.DefaultPricing, logging.Discard())
	wf.SetDate("2024-06-05")
	notifier := &recordingNotifier{}
	loader := NewLoader(src, wf, notifier, logging.Discard())

	_, err := loader.Refresh(context.Background(), "clinic-1")
	require.Error(t, err)
	assert.Equal(t, "2024-06-05", wf.State().SelectedDate)
	assert.Equal(t, []string{"Failed to load available dates"}, notifier.messages)
	assert.Len(t, src.calls, 1, "no automatic retry")
}

func TestLoaderDropsStaleResponse(t *testing.T) {
	src := &stubSource{
		release: make(chan struct{}),
		cal: &Calendar{Dates: []AvailableDate{
			{Date: "2024-06-01", Slots: []TimeSlot{{Time: "10:00", Status: SlotAvailable}}},
		}},
	}
	wf := booking.NewWorkflow(booking.DefaultPricing, logging.Discard())
	loader := NewLoader(src, wf, nil, logging.Discard()).
		WithClock(fixedClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))

	done := make(chan error, 1)
	go func() {
		_, err := loader.Refresh(context.Background(), "clinic-1")
		done <- err
	}()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.calls) == 1
	}, time.Second, 5*time.Millisecond)

	loader.Invalidate()
	close(src.release)

	err := <-done
	assert.ErrorIs(t, err, ErrStale)
	assert.Empty(t, wf.State().SelectedDate)
	assert.Empty(t, loader.Calendar().Dates)
}

func TestLoaderRequiresClinic(t *testing.T) {
	wf := booking.NewWorkflow(booking.DefaultPricing, logging.Discard())
	loader := NewLoader(&stubSource{}, wf, nil, nil)
	_, err := loader.Refresh(context.Background(), "")
	assert.Error(t, err)
}
