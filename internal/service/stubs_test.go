package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alvacus/internal/auth"
	"alvacus/internal/mailer"
	"alvacus/internal/models"
	"alvacus/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	getByGoogleIDFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	updateFieldsFn  func(context.Context, uint, map[string]any) error
	setPasswordFn   func(context.Context, uint, string) (*models.User, error)
	listFn          func(context.Context, repository.ListQuery) ([]models.User, int64, error)
	listByRoleFn    func(context.Context, string) ([]models.User, error)
	deleteFn        func(context.Context, uint, repository.DeleteUserOptions) error

	mu    sync.Mutex
	calls []string
}

func (s *userRepoStub) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	s.record("GetByID")
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.record("GetByEmail")
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.record("GetByUsername")
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	s.record("GetByGoogleID")
	return s.getByGoogleIDFn(ctx, googleID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	s.record("Create")
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	s.record("Update")
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	s.record("UpdateFields")
	return s.updateFieldsFn(ctx, id, fields)
}
func (s *userRepoStub) SetPassword(ctx context.Context, id uint, hash string) (*models.User, error) {
	s.record("SetPassword")
	return s.setPasswordFn(ctx, id, hash)
}
func (s *userRepoStub) List(ctx context.Context, q repository.ListQuery) ([]models.User, int64, error) {
	s.record("List")
	return s.listFn(ctx, q)
}
func (s *userRepoStub) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	s.record("ListByRole")
	return s.listByRoleFn(ctx, role)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint, opts repository.DeleteUserOptions) error {
	s.record("Delete")
	return s.deleteFn(ctx, id, opts)
}

// noopUserRepo answers every lookup with "no such user" and accepts every write.
func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		},
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		getByGoogleIDFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn:       func(context.Context, *models.User) error { return nil },
		updateFieldsFn: func(context.Context, uint, map[string]any) error { return nil },
		setPasswordFn: func(_ context.Context, id uint, _ string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		},
		listFn:       func(context.Context, repository.ListQuery) ([]models.User, int64, error) { return nil, 0, nil },
		listByRoleFn: func(context.Context, string) ([]models.User, error) { return nil, nil },
		deleteFn:     func(context.Context, uint, repository.DeleteUserOptions) error { return nil },
	}
}

// withUsers serves GetByID from a fixed set of users.
func (s *userRepoStub) withUsers(users ...*models.User) *userRepoStub {
	s.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		for _, u := range users {
			if u.ID == id {
				copied := *u
				return &copied, nil
			}
		}
		return nil, models.NewNotFoundError("User", id)
	}
	return s
}

type followRepoStub struct {
	followFn      func(context.Context, uint, uint, *models.Notification) error
	unfollowFn    func(context.Context, uint, uint) (bool, error)
	followerIDsFn func(context.Context, uint) ([]uint, error)
}

func (s *followRepoStub) Follow(ctx context.Context, followerID, followeeID uint, n *models.Notification) error {
	return s.followFn(ctx, followerID, followeeID, n)
}
func (s *followRepoStub) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.unfollowFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.followerIDsFn(ctx, userID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		followFn:      func(context.Context, uint, uint, *models.Notification) error { return nil },
		unfollowFn:    func(context.Context, uint, uint) (bool, error) { return true, nil },
		followerIDsFn: func(context.Context, uint) ([]uint, error) { return nil, nil },
	}
}

type notificationRepoStub struct {
	listByUserFn  func(context.Context, uint, int) ([]models.Notification, error)
	markAllReadFn func(context.Context, uint) (int64, error)
}

func (s *notificationRepoStub) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	return s.listByUserFn(ctx, userID, limit)
}
func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.markAllReadFn(ctx, userID)
}

type calculatorRepoStub struct {
	createFn      func(context.Context, *models.Calculator) error
	getByIDFn     func(context.Context, uint) (*models.Calculator, error)
	getBySlugFn   func(context.Context, string) (*models.Calculator, error)
	slugTakenFn   func(context.Context, string, uint) (bool, error)
	updateFn      func(context.Context, *models.Calculator, string) error
	setVerifiedFn func(context.Context, uint, bool) error
	deleteFn      func(context.Context, uint) error
	listAllFn     func(context.Context, repository.CalculatorFilter) ([]models.Calculator, error)
	listFn        func(context.Context, repository.CalculatorFilter, repository.ListQuery) ([]models.Calculator, int64, error)
	saveFn        func(context.Context, uint, uint, *models.Notification) error
	unsaveFn      func(context.Context, uint, uint) (bool, error)
}

func (s *calculatorRepoStub) Create(ctx context.Context, c *models.Calculator) error {
	return s.createFn(ctx, c)
}
func (s *calculatorRepoStub) GetByID(ctx context.Context, id uint) (*models.Calculator, error) {
	return s.getByIDFn(ctx, id)
}
func (s *calculatorRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Calculator, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *calculatorRepoStub) SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error) {
	return s.slugTakenFn(ctx, slug, excludeID)
}
func (s *calculatorRepoStub) Update(ctx context.Context, c *models.Calculator, previousSlug string) error {
	return s.updateFn(ctx, c, previousSlug)
}
func (s *calculatorRepoStub) SetVerified(ctx context.Context, id uint, verified bool) error {
	return s.setVerifiedFn(ctx, id, verified)
}
func (s *calculatorRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *calculatorRepoStub) ListAll(ctx context.Context, f repository.CalculatorFilter) ([]models.Calculator, error) {
	return s.listAllFn(ctx, f)
}
func (s *calculatorRepoStub) List(ctx context.Context, f repository.CalculatorFilter, q repository.ListQuery) ([]models.Calculator, int64, error) {
	return s.listFn(ctx, f, q)
}
func (s *calculatorRepoStub) Save(ctx context.Context, calcID, userID uint, n *models.Notification) error {
	return s.saveFn(ctx, calcID, userID, n)
}
func (s *calculatorRepoStub) Unsave(ctx context.Context, calcID, userID uint) (bool, error) {
	return s.unsaveFn(ctx, calcID, userID)
}

// calculatorRepoWith serves GetByID from calcs and accepts every write.
func calculatorRepoWith(calcs ...*models.Calculator) *calculatorRepoStub {
	return &calculatorRepoStub{
		createFn: func(_ context.Context, c *models.Calculator) error {
			c.ID = 100
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Calculator, error) {
			for _, c := range calcs {
				if c.ID == id {
					copied := *c
					return &copied, nil
				}
			}
			return nil, models.NewNotFoundError("Calculator", id)
		},
		getBySlugFn: func(_ context.Context, slug string) (*models.Calculator, error) {
			return nil, models.NewNotFoundError("Calculator", slug)
		},
		slugTakenFn:   func(context.Context, string, uint) (bool, error) { return false, nil },
		updateFn:      func(context.Context, *models.Calculator, string) error { return nil },
		setVerifiedFn: func(context.Context, uint, bool) error { return nil },
		deleteFn:      func(context.Context, uint) error { return nil },
		listAllFn: func(context.Context, repository.CalculatorFilter) ([]models.Calculator, error) {
			return nil, nil
		},
		listFn: func(context.Context, repository.CalculatorFilter, repository.ListQuery) ([]models.Calculator, int64, error) {
			return nil, 0, nil
		},
		saveFn: func(_ context.Context, _, _ uint, n *models.Notification) error {
			if n != nil {
				n.ID = 1
			}
			return nil
		},
		unsaveFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
	}
}

type commentRepoStub struct {
	createFn           func(context.Context, *models.Comment, *models.Notification) error
	getByIDFn          func(context.Context, uint) (*models.Comment, error)
	listByCalculatorFn func(context.Context, uint, repository.ListQuery) ([]models.Comment, int64, error)
	deleteFn           func(context.Context, uint) error
	addReplyFn         func(context.Context, *models.Reply, *models.Notification) error
	deleteReplyFn      func(context.Context, uint, uint) (bool, error)
	likeFn             func(context.Context, uint, uint, *models.Notification) error
	unlikeFn           func(context.Context, uint, uint) (bool, error)
	activityFn         func(context.Context, uint) (*models.UserActivity, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment, n *models.Notification) error {
	return s.createFn(ctx, c, n)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByCalculator(ctx context.Context, calcID uint, q repository.ListQuery) ([]models.Comment, int64, error) {
	return s.listByCalculatorFn(ctx, calcID, q)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) AddReply(ctx context.Context, r *models.Reply, n *models.Notification) error {
	return s.addReplyFn(ctx, r, n)
}
func (s *commentRepoStub) DeleteReply(ctx context.Context, commentID, replyID uint) (bool, error) {
	return s.deleteReplyFn(ctx, commentID, replyID)
}
func (s *commentRepoStub) Like(ctx context.Context, commentID, userID uint, n *models.Notification) error {
	return s.likeFn(ctx, commentID, userID, n)
}
func (s *commentRepoStub) Unlike(ctx context.Context, commentID, userID uint) (bool, error) {
	return s.unlikeFn(ctx, commentID, userID)
}
func (s *commentRepoStub) Activity(ctx context.Context, userID uint) (*models.UserActivity, error) {
	return s.activityFn(ctx, userID)
}

// commentRepoWith serves GetByID from comments and accepts every write,
// assigning IDs to the notifications it stores.
func commentRepoWith(comments ...*models.Comment) *commentRepoStub {
	stamp := func(n *models.Notification) {
		if n != nil {
			n.ID = 1
		}
	}
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment, n *models.Notification) error {
			c.ID = 500
			stamp(n)
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			for _, c := range comments {
				if c.ID == id {
					copied := *c
					return &copied, nil
				}
			}
			return &models.Comment{ID: id}, nil
		},
		listByCalculatorFn: func(context.Context, uint, repository.ListQuery) ([]models.Comment, int64, error) {
			return nil, 0, nil
		},
		deleteFn: func(context.Context, uint) error { return nil },
		addReplyFn: func(_ context.Context, _ *models.Reply, n *models.Notification) error {
			stamp(n)
			return nil
		},
		deleteReplyFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
		likeFn: func(_ context.Context, _, _ uint, n *models.Notification) error {
			stamp(n)
			return nil
		},
		unlikeFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
		activityFn: func(context.Context, uint) (*models.UserActivity, error) {
			return &models.UserActivity{}, nil
		},
	}
}

type publisherStub struct {
	mu        sync.Mutex
	published []models.Notification
	err       error
}

func (p *publisherStub) Publish(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *n)
	return p.err
}

func (p *publisherStub) sent() []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.published...)
}

type mailerStub struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *mailerStub) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mailerStub) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

func testIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret-for-service-tests-0001",
		RefreshSecret: "refresh-secret-for-service-tests-0002",
		PurposeSecret: "purpose-secret-for-service-tests-0003",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		ResetTTL:      time.Hour,
		ActivationTTL: time.Hour,
	})
}

var (
	hashOnce   sync.Once
	cachedHash string
)

// secretHash is the bcrypt hash of "secret1", computed once per test binary.
func secretHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
		if err == nil {
			cachedHash = string(h)
		}
	})
	require.NotEmpty(t, cachedHash)
	return cachedHash
}

func principalFor(u *models.User) *auth.Principal {
	return auth.NewPrincipal(u)
}

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

func assertUnprocessableError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnprocessable)
}

func uintPtr(v uint) *uint { return &v }
