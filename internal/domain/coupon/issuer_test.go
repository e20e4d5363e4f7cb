package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	coupon     *Coupon
	couponErr  error
	disposable *Disposable
	codeErr    error
	issueErr   error

	issued []*Ticket
}

func (m *mockRepo) GetByID(context.Context, string) (*Coupon, error) {
	return m.coupon, m.couponErr
}

func (m *mockRepo) CriteriaByCoupon(context.Context, string) ([]Criterion, error) {
	return nil, nil
}

func (m *mockRepo) FindDisposableByCode(context.Context, string) (*Disposable, error) {
	return m.disposable, m.codeErr
}

func (m *mockRepo) GetTicket(context.Context, string) (*Ticket, error) {
	return nil, ErrTicketNotFound
}

func (m *mockRepo) IssueTicket(_ context.Context, _ *Coupon, t *Ticket) error {
	if m.issueErr != nil {
		return m.issueErr
	}
	m.issued = append(m.issued, t)
	return nil
}

func newIssuerAt(repo Repository, now time.Time) *Issuer {
	i := NewIssuer(repo)
	i.now = func() time.Time { return now }
	return i
}

func TestIssuePublic(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	open := now.Add(-time.Hour)
	closed := now.Add(time.Hour)

	t.Run("issues inside the window", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{
			ID:       "c1",
			OpenedAt: &open,
			ClosedAt: &closed,
		}}
		issuer := newIssuerAt(repo, now)

		ticket, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "c1", ticket.CouponID)
		assert.Equal(t, "u1", ticket.UserID)
		assert.Empty(t, ticket.DisposableID)
		assert.Nil(t, ticket.ExpiredAt)
		require.Len(t, repo.issued, 1)
	})

	t.Run("not open yet", func(t *testing.T) {
		opens := now.Add(time.Minute)
		repo := &mockRepo{coupon: &Coupon{ID: "c1", OpenedAt: &opens}}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.ErrorIs(t, err, ErrNotOpenYet)
		assert.Empty(t, repo.issued)
	})

	t.Run("closed", func(t *testing.T) {
		closedAt := now.Add(-time.Minute)
		repo := &mockRepo{coupon: &Coupon{ID: "c1", ClosedAt: &closedAt}}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.ErrorIs(t, err, ErrClosed)
	})

	t.Run("unknown coupon", func(t *testing.T) {
		repo := &mockRepo{couponErr: ErrNotFound}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.IssuePublic(context.Background(), "nope", "u1")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("volume cap error passes through", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{ID: "c1", Volume: 2}, issueErr: ErrVolumeExceeded}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.ErrorIs(t, err, ErrVolumeExceeded)
	})

	t.Run("per-user cap error passes through", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{ID: "c1", VolumePerCitizen: 1}, issueErr: ErrPerUserCapExceeded}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.ErrorIs(t, err, ErrPerUserCapExceeded)
	})

	t.Run("expiredIn sets ticket expiry relative to issue time", func(t *testing.T) {
		repo := &mockRepo{coupon: &Coupon{ID: "c1", ExpiredIn: 72 * time.Hour}}
		issuer := newIssuerAt(repo, now)

		ticket, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.NoError(t, err)
		require.NotNil(t, ticket.ExpiredAt)
		assert.Equal(t, now.Add(72*time.Hour), *ticket.ExpiredAt)
	})

	t.Run("coupon expiredAt used when expiredIn unset", func(t *testing.T) {
		expires := now.Add(30 * 24 * time.Hour)
		repo := &mockRepo{coupon: &Coupon{ID: "c1", ExpiredAt: &expires}}
		issuer := newIssuerAt(repo, now)

		ticket, err := issuer.IssuePublic(context.Background(), "c1", "u1")
		require.NoError(t, err)
		require.NotNil(t, ticket.ExpiredAt)
		assert.Equal(t, expires, *ticket.ExpiredAt)
	})
}

func TestRedeem(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("valid code issues a ticket bound to the disposable", func(t *testing.T) {
		repo := &mockRepo{
			coupon:     &Coupon{ID: "c1"},
			disposable: &Disposable{ID: "d1", CouponID: "c1", Code: "WELCOME-1"},
		}
		issuer := newIssuerAt(repo, now)

		ticket, err := issuer.Redeem(context.Background(), "WELCOME-1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "d1", ticket.DisposableID)
		assert.Equal(t, "c1", ticket.CouponID)
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := &mockRepo{codeErr: ErrCodeNotFound}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.Redeem(context.Background(), "NOPE", "u1")
		require.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		expired := now.Add(-time.Second)
		repo := &mockRepo{
			disposable: &Disposable{ID: "d1", CouponID: "c1", ExpiredAt: &expired},
		}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.Redeem(context.Background(), "OLD", "u1")
		require.ErrorIs(t, err, ErrCodeExpired)
	})

	t.Run("second redemption fails", func(t *testing.T) {
		repo := &mockRepo{
			coupon:     &Coupon{ID: "c1"},
			disposable: &Disposable{ID: "d1", CouponID: "c1"},
			issueErr:   ErrAlreadyRedeemed,
		}
		issuer := newIssuerAt(repo, now)

		_, err := issuer.Redeem(context.Background(), "USED", "u1")
		require.ErrorIs(t, err, ErrAlreadyRedeemed)
	})
}

func TestTicketExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, (&Ticket{}).Expired(now))
	assert.False(t, (&Ticket{ExpiredAt: &future}).Expired(now))
	assert.True(t, (&Ticket{ExpiredAt: &past}).Expired(now))
}
