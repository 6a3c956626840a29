package booking

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/catalog"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func newTestWorkflow() *Workflow {
	return NewWorkflow(DefaultPricing, logging.Discard())
}

func strPtr(s string) *string { return &s }

func TestStepNavigationStaysInBounds(t *testing.T) {
	w := newTestWorkflow()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		if rng.Intn(2) == 0 {
			w.NextStep()
		} else {
			w.PrevStep()
		}
		step := w.State().CurrentStep
		if step < FirstStep || step > LastStep {
			t.Fatalf("step %d escaped bounds after %d moves", step, i)
		}
	}
}

func TestStepClampingIsIdempotentAtEnds(t *testing.T) {
	w := newTestWorkflow()
	w.PrevStep()
	w.PrevStep()
	assert.Equal(t, StepClinic, w.State().CurrentStep)
	assert.False(t, w.CanGoPrev())

	for i := 0; i < 10; i++ {
		w.NextStep()
	}
	assert.Equal(t, StepSummary, w.State().CurrentStep)
	assert.False(t, w.CanGoNext())

	w.SetStep(-3)
	assert.Equal(t, StepClinic, w.State().CurrentStep)
	w.SetStep(99)
	assert.Equal(t, StepSummary, w.State().CurrentStep)
	w.SetStep(3)
	assert.Equal(t, StepDateTime, w.State().CurrentStep)
}

func TestSetSessionsIgnoresInvalidValues(t *testing.T) {
	w := newTestWorkflow()
	w.SetSessions(3)
	for _, n := range []int{0, -1, -100} {
		w.SetSessions(n)
		assert.Equal(t, 3, w.State().SelectedSessions, "n=%d", n)
	}
	w.SetSessions(9)
	assert.Equal(t, 9, w.State().SelectedSessions, "no upper bound on session count")
}

func TestPatientInfoMergeSemantics(t *testing.T) {
	w := newTestWorkflow()
	w.SetPatientInfo(PatientPatch{Phone: strPtr("1234567890")})
	w.SetPatientInfo(PatientPatch{Name: strPtr("A")})

	info := w.PatientInfo()
	assert.Equal(t, PatientInfo{Name: "A", Email: "", Phone: "1234567890"}, info)
	assert.False(t, w.IsPatientInfoValid())

	w.UpdatePatientField(FieldEmail, "a@example.com")
	assert.True(t, w.IsPatientInfoValid())

	w.UpdatePatientField(PatientField("age"), "30")
	assert.Equal(t, "a@example.com", w.PatientInfo().Email)
}

func TestEmptyPatchIsNoop(t *testing.T) {
	w := newTestWorkflow()
	w.UpdatePatientField(FieldName, "Asha")
	before := w.State()
	w.SetPatientInfo(PatientPatch{})
	assert.Equal(t, before, w.State())
}

func TestResetRestoresInitialState(t *testing.T) {
	w := newTestWorkflow()
	w.SetClinic(catalog.Clinic{ID: "c1"})
	w.SetSessions(4)
	w.SetDateTime("2024-06-01", "10:00")
	w.UpdatePatientField(FieldName, "Ravi")
	w.SetSessionPricing(5, 6)
	w.SetStep(4)

	w.ResetBooking()
	if !reflect.DeepEqual(InitialState(DefaultPricing), w.State()) {
		t.Fatalf("reset state mismatch: %#v", w.State())
	}
}

func TestDateChangeClearsTime(t *testing.T) {
	w := newTestWorkflow()
	w.SetDateTime("2024-06-01", "10:00")
	require.Equal(t, "10:00", w.State().SelectedTime)

	w.SetDate("2024-06-02")
	s := w.State()
	assert.Equal(t, "2024-06-02", s.SelectedDate)
	assert.Equal(t, "", s.SelectedTime)
}

func TestClinicChangeClearsDateAndTime(t *testing.T) {
	w := newTestWorkflow()
	w.SetClinic(catalog.Clinic{ID: "c1"})
	w.SetDateTime("2024-06-01", "10:00")

	w.SetClinic(catalog.Clinic{ID: "c1", ClinicName: "refreshed"})
	assert.Equal(t, "10:00", w.State().SelectedTime, "same clinic keeps selections")

	w.SetClinic(catalog.Clinic{ID: "c2"})
	s := w.State()
	assert.Equal(t, "c2", s.ClinicID())
	assert.Empty(t, s.SelectedDate)
	assert.Empty(t, s.SelectedTime)

	w.SetClinic(catalog.Clinic{})
	assert.Equal(t, "c2", w.State().ClinicID(), "clinic without id is ignored")
}

func TestSelectClinicEnforcesWindow(t *testing.T) {
	w := newTestWorkflow()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	err := w.SelectClinic(catalog.Clinic{ID: "c1"}, now)
	assert.ErrorIs(t, err, ErrClinicUnavailable)

	err = w.SelectClinic(catalog.Clinic{}, now)
	assert.ErrorIs(t, err, ErrClinicRequired)

	open := catalog.Clinic{ID: "c2", BookingWindow: &catalog.BookingWindow{StartDate: "2024-01-01", EndDate: "2024-12-31"}}
	require.NoError(t, w.SelectClinic(open, now))
	assert.Equal(t, "c2", w.State().ClinicID())
}

func TestStateIsCopied(t *testing.T) {
	w := newTestWorkflow()
	w.SetClinic(catalog.Clinic{ID: "c1", ClinicName: "Original"})
	s := w.State()
	s.SelectedClinic.ClinicName = "Mutated"
	s.SelectedSessions = 40
	assert.Equal(t, "Original", w.State().SelectedClinic.ClinicName)
	assert.Equal(t, 1, w.State().SelectedSessions)
}

func TestSessionPricingFlooredAtZero(t *testing.T) {
	w := newTestWorkflow()
	w.SetSessionPricing(-5, 800)
	s := w.State()
	assert.Equal(t, int64(0), s.SessionPrice)
	assert.Equal(t, int64(800), s.SessionMRP)
}

func TestSubscribeNotifiesUntilUnsubscribed(t *testing.T) {
	w := newTestWorkflow()
	var seen []Step
	unsubscribe := w.Subscribe(func(s State) { seen = append(seen, s.CurrentStep) })
	w.NextStep()
	w.NextStep()
	unsubscribe()
	w.NextStep()
	assert.Equal(t, []Step{StepSessions, StepDateTime}, seen)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := InitialState(DefaultPricing)
	clinic := catalog.Clinic{ID: "c1"}
	next := Reduce(s, SetClinic{Clinic: clinic}, DefaultPricing)
	assert.Nil(t, s.SelectedClinic)
	assert.Equal(t, "c1", next.ClinicID())
	assert.Equal(t, s, Reduce(s, nil, DefaultPricing))
}

func TestStepTitles(t *testing.T) {
	assert.Equal(t, "Select Clinic", StepClinic.Title())
	assert.Equal(t, "Choose Sessions", StepSessions.Title())
	assert.Equal(t, "Date & Time", StepDateTime.Title())
	assert.Equal(t, "Patient Information", StepPatientInfo.Title())
	assert.Equal(t, "Booking Summary", StepSummary.String())
	assert.Equal(t, "Booking", Step(9).Title())
}
