package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

func (f *fixture) openDispute(t *testing.T, user string, targetType model.DisputeTargetType, targetID string) *model.Dispute {
	t.Helper()
	d, err := f.svc.OpenDispute(f.ctx, OpenDisputeInput{
		UserID: user, TargetType: targetType, TargetID: targetID, Reason: "work not delivered",
	})
	require.NoError(t, err)
	return d
}

func TestOpenDispute_Parties(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, humanID, polygonAddr, true)
	payout := f.manualPayout(t, 500, model.ExecutionModeManual)
	hold := f.bookingHold(t)

	allowed := []struct {
		user       string
		targetType model.DisputeTargetType
		targetID   string
	}{
		{ownerID, model.DisputeTargetBooking, repository.DemoBookingID},
		{humanID, model.DisputeTargetBooking, repository.DemoBookingID},
		{ownerID, model.DisputeTargetPayout, payout.ID},
		{humanID, model.DisputeTargetPayout, payout.ID},
		{humanID, model.DisputeTargetEscrow, hold.ID},
		{ownerID, model.DisputeTargetBounty, repository.DemoBountyID},
		{applicant, model.DisputeTargetBounty, repository.DemoBountyID},
	}
	for _, tc := range allowed {
		d := f.openDispute(t, tc.user, tc.targetType, tc.targetID)
		assert.Equal(t, model.DisputeStatusOpen, d.Status)
		assert.Equal(t, tc.user, d.OpenedBy)
	}

	denied := []struct {
		user       string
		targetType model.DisputeTargetType
		targetID   string
	}{
		{applicant, model.DisputeTargetBooking, repository.DemoBookingID},
		{applicant, model.DisputeTargetPayout, payout.ID},
		{"stranger", model.DisputeTargetEscrow, hold.ID},
		{humanID, model.DisputeTargetBounty, repository.DemoBountyID},
		{ownerID, model.DisputeTargetBooking, "missing"},
	}
	for _, tc := range denied {
		_, err := f.svc.OpenDispute(f.ctx, OpenDisputeInput{
			UserID: tc.user, TargetType: tc.targetType, TargetID: tc.targetID, Reason: "r",
		})
		assert.ErrorIs(t, err, ErrNotFound, "%s on %s %s", tc.user, tc.targetType, tc.targetID)
	}

	_, err := f.svc.OpenDispute(f.ctx, OpenDisputeInput{
		UserID: ownerID, TargetType: model.DisputeTargetBooking, TargetID: repository.DemoBookingID,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveDispute(t *testing.T) {
	f := newFixture(t)
	d := f.openDispute(t, humanID, model.DisputeTargetBooking, repository.DemoBookingID)

	_, err := f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: ownerID, DisputeID: d.ID, Decision: model.ResolutionRefund})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: reviewerID, DisputeID: d.ID, Decision: "coin_flip"})
	assert.ErrorIs(t, err, ErrValidation)

	note := "partial delivery"
	resolved, err := f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{
		ReviewerID: reviewerID, DisputeID: d.ID, Decision: model.ResolutionSplit, Note: &note,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DisputeStatusResolved, resolved.Status)
	assert.Equal(t, model.ResolutionSplit, *resolved.Resolution)
	assert.Equal(t, reviewerID, *resolved.ResolvedBy)
	assert.Equal(t, note, *resolved.ResolutionNote)

	_, err = f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: reviewerID, DisputeID: d.ID, Decision: model.ResolutionRefund})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	evts, err := f.svc.ListDisputeEvents(f.ctx, humanID, d.ID)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, model.EventDisputeOpened, evts[0].EventType)
	assert.Equal(t, model.EventDisputeResolved, evts[1].EventType)
	assert.Equal(t, "split", evts[1].Payload["resolution"])
}

func TestResolveDispute_RejectDecision(t *testing.T) {
	f := newFixture(t)
	d := f.openDispute(t, ownerID, model.DisputeTargetBooking, repository.DemoBookingID)

	rejected, err := f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: reviewerID, DisputeID: d.ID, Decision: model.ResolutionReject})
	require.NoError(t, err)
	assert.Equal(t, model.DisputeStatusRejected, rejected.Status)

	_, err = f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: reviewerID, DisputeID: "missing", Decision: model.ResolutionReject})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveDispute_LeavesFundsUntouched(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, humanID, polygonAddr, true)
	hold := f.bookingHold(t)
	d := f.openDispute(t, ownerID, model.DisputeTargetEscrow, hold.ID)

	_, err := f.svc.ResolveDispute(f.ctx, ResolveDisputeInput{ReviewerID: reviewerID, DisputeID: d.ID, Decision: model.ResolutionRefund})
	require.NoError(t, err)

	stored, err := f.svc.GetEscrow(f.ctx, ownerID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusHeld, stored.Status)
}

func TestDisputeVisibility(t *testing.T) {
	f := newFixture(t)
	mine := f.openDispute(t, ownerID, model.DisputeTargetBooking, repository.DemoBookingID)
	theirs := f.openDispute(t, humanID, model.DisputeTargetBooking, repository.DemoBookingID)

	got, err := f.svc.GetDispute(f.ctx, ownerID, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.GetDispute(f.ctx, ownerID, theirs.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.ListDisputeEvents(f.ctx, ownerID, theirs.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetDispute(f.ctx, reviewerID, theirs.ID)
	require.NoError(t, err)

	own, err := f.svc.ListDisputes(f.ctx, ownerID, model.DisputeFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	all, err := f.svc.ListDisputes(f.ctx, reviewerID, model.DisputeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListDisputes(f.ctx, "", model.DisputeFilter{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ListDisputes(f.ctx, ownerID, model.DisputeFilter{TargetType: "planet"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDisputeEventsAreEnqueued(t *testing.T) {
	f := newFixture(t)
	d := f.openDispute(t, ownerID, model.DisputeTargetBooking, repository.DemoBookingID)

	outbox := f.claimOutbox(t)
	require.Len(t, outbox, 1)
	assert.Equal(t, model.AggregateDispute, outbox[0].Aggregate)
	assert.Equal(t, d.ID, outbox[0].AggregateID)
	assert.Equal(t, model.EventDisputeOpened, outbox[0].EventType)
	assert.Equal(t, ownerID, outbox[0].OwnerUserID)
}
