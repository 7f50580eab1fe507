package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezvolt/darasa/core/account"
)

type accountRepository struct {
	db    *accountTable
	rooms *classroomTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db.accounts, rooms: db.classrooms}
}

// attachClassrooms derives the membership list from the classroom store;
// it is never written through the account table.
func (repo *accountRepository) attachClassrooms(acct *account.Account) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	ids := make([]string, 0)
	for _, room := range repo.rooms.table {
		if room.IsMember(acct.ID) {
			ids = append(ids, room.ID)
		}
	}
	sort.Strings(ids)
	acct.Classrooms = ids
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		accts = append(accts, *a)
	}
	return accts
}

func isExcluded(acct account.Account, excluded []account.Account) bool {
	if len(excluded) == 0 {
		return false
	}
	i := sort.Search(len(excluded), func(i int) bool { return excluded[i].ID >= acct.ID })
	return i < len(excluded) && excluded[i].ID == acct.ID
}

func (repo *accountRepository) CheckUniqueness(_ context.Context, username, email string, excluded ...account.Account) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if len(excluded) > 1 {
		sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })
	}

	for _, acct := range repo.query() {
		if isExcluded(acct, excluded) {
			continue
		}
		if acct.Username == username {
			return account.ErrUsernameExists
		}
		if acct.Email == email {
			return account.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// the store's uniqueness constraint is the authority, not the fast-path
	// existence check in the service
	for _, a := range repo.db.table {
		if a.Username == acct.Username {
			return account.Account{}, account.ErrUsernameExists
		}
		if a.Email == acct.Email {
			return account.Account{}, account.ErrEmailExists
		}
	}

	stored := acct
	repo.db.table[acct.ID] = &stored
	acct.Classrooms = []string{}
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.table[id]; ok {
		out := *acct
		repo.attachClassrooms(&out)
		return out, nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByUsername(_ context.Context, username string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Username == username {
			repo.attachClassrooms(&acct)
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.Email == email {
			repo.attachClassrooms(&acct)
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetAccountByOTP(_ context.Context, code string) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, acct := range repo.query() {
		if acct.OTP != "" && acct.OTP == code {
			repo.attachClassrooms(&acct)
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	curr, ok := repo.db.table[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	// profile fields only; credential/session/OTP fields have their own ops
	curr.FullName = acct.FullName
	curr.Email = acct.Email
	curr.Avatar = acct.Avatar
	curr.Role = acct.Role
	curr.UpdatedAt = acct.UpdatedAt
	out := *curr
	repo.attachClassrooms(&out)
	return out, nil
}

func (repo *accountRepository) SetRefreshToken(_ context.Context, id, token string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.RefreshToken = token
	return nil
}

// RotateRefreshToken is the compare-and-set serialization point for
// concurrent refresh calls: the slot must still hold old.
func (repo *accountRepository) RotateRefreshToken(_ context.Context, id, old, new string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	if acct.RefreshToken != old {
		return account.ErrTokenMismatch
	}
	acct.RefreshToken = new
	return nil
}

func (repo *accountRepository) ClearRefreshToken(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if acct, ok := repo.db.table[id]; ok {
		acct.RefreshToken = ""
	}
	return nil
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id string, t time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.LastLogin = t.UTC()
	return nil
}

func (repo *accountRepository) SetOTP(_ context.Context, id, code, email string, expires time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.OTP = code
	acct.OTPExpires = expires
	acct.OTPEmail = email
	return nil
}

// ClearOTP clears the OTP fields only while the stored code still matches;
// a concurrently resent code is left intact.
func (repo *accountRepository) ClearOTP(_ context.Context, id, code string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	if acct.OTP != code {
		return nil
	}
	acct.OTP = ""
	acct.OTPExpires = time.Time{}
	acct.OTPEmail = ""
	return nil
}

func (repo *accountRepository) SetPasswordHash(_ context.Context, id string, hash []byte) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.PasswordHash = hash
	return nil
}
