package inmemdb

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezvolt/darasa/core/account"
	"github.com/trezvolt/darasa/core/classroom"
)

func seedAccount(t *testing.T, repo account.Repository, id string) account.Account {
	t.Helper()
	acct, err := repo.CreateAccount(context.Background(), account.Account{
		ID:       id,
		FullName: "Alice Mwangi",
		Username: "alice-" + id,
		Email:    id + "@x.com",
	})
	require.NoError(t, err)
	return acct
}

func TestRotateRefreshTokenIsCompareAndSet(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	acct := seedAccount(t, repo, "acct-1")
	require.NoError(t, repo.SetRefreshToken(ctx, acct.ID, "old"))

	require.NoError(t, repo.RotateRefreshToken(ctx, acct.ID, "old", "new"))

	// presenting the rotated-out value again fails
	err = repo.RotateRefreshToken(ctx, acct.ID, "old", "newer")
	assert.ErrorIs(t, err, account.ErrTokenMismatch)

	stored, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.RefreshToken)
}

func TestConcurrentRotationExactlyOneWins(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	acct := seedAccount(t, repo, "acct-1")
	require.NoError(t, repo.SetRefreshToken(ctx, acct.ID, "live"))

	const callers = 16
	results := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = repo.RotateRefreshToken(ctx, acct.ID, "live", "rotated-by-"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, account.ErrTokenMismatch)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent rotation must win")
}

func TestClearOTPIsCompareAndClear(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	acct := seedAccount(t, repo, "acct-1")
	require.NoError(t, repo.SetOTP(ctx, acct.ID, "111111", acct.Email, acct.CreatedAt))

	// clearing a code that was since replaced is a no-op
	require.NoError(t, repo.SetOTP(ctx, acct.ID, "222222", acct.Email, acct.CreatedAt))
	require.NoError(t, repo.ClearOTP(ctx, acct.ID, "111111"))

	stored, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "222222", stored.OTP)

	require.NoError(t, repo.ClearOTP(ctx, acct.ID, "222222"))
	stored, err = repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.OTP)
	assert.Empty(t, stored.OTPEmail)
	assert.True(t, stored.OTPExpires.IsZero())
}

func TestClearRefreshTokenIdempotent(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	acct := seedAccount(t, repo, "acct-1")
	require.NoError(t, repo.SetRefreshToken(ctx, acct.ID, "live"))

	require.NoError(t, repo.ClearRefreshToken(ctx, acct.ID))
	require.NoError(t, repo.ClearRefreshToken(ctx, acct.ID))

	stored, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
}

func TestAccountClassroomsDerivedFromMemberships(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewAccountRepository(db)
	rooms := NewClassroomRepository(db)
	ctx := context.Background()

	owner := seedAccount(t, repo, "acct-owner")
	member := seedAccount(t, repo, "acct-member")
	assert.Equal(t, []string{}, member.Classrooms)

	for _, id := range []string{"room-b", "room-a"} {
		_, err := rooms.CreateClassroom(ctx, classroom.Classroom{
			ID: id, Name: "Room " + id, Code: "code-" + id, OwnerID: owner.ID,
		})
		require.NoError(t, err)
		require.NoError(t, rooms.AddMember(ctx, id, member.ID))
	}

	stored, err := repo.GetAccountByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-a", "room-b"}, stored.Classrooms)

	byName, err := repo.GetAccountByUsername(ctx, member.Username)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-a", "room-b"}, byName.Classrooms)

	require.NoError(t, rooms.RemoveMember(ctx, "room-a", member.ID))
	stored, err = repo.GetAccountByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"room-b"}, stored.Classrooms)
}
