package unit

import (
	"context"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

type AuthUserRepoMock struct{ mock.Mock }

func (m *AuthUserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *AuthUserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *AuthUserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *AuthUserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *AuthUserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AuthRTRepoMock struct{ mock.Mock }

func (m *AuthRTRepoMock) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *AuthRTRepoMock) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	rt, _ := args.Get(0).(*model.RefreshToken)
	return rt, args.Error(1)
}

func (m *AuthRTRepoMock) MarkUsed(ctx context.Context, tokenID string, usedAt time.Time) error {
	args := m.Called(ctx, tokenID, usedAt)
	return args.Error(0)
}

func (m *AuthRTRepoMock) DeleteAllByUserID(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *AuthRTRepoMock) DeleteByID(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

// validatorは素通し（検証自体はvalidatorパッケージ側のテストで見る）
type passthroughAuthValidator struct{}

func (passthroughAuthValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	return nil
}
func (passthroughAuthValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	return nil
}
func (passthroughAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	return nil
}
func (passthroughAuthValidator) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	return nil
}

// チェックアウトセッションの簡易フェイク。openに入れたものがFindOpenByUserIDで返る。
type authSessionsStub struct {
	open  *model.CheckoutSession
	saved []model.CheckoutSession
}

func (s *authSessionsStub) Create(ctx context.Context, sess model.CheckoutSession) error {
	return nil
}

func (s *authSessionsStub) FindByID(ctx context.Context, sessionID string) (model.CheckoutSession, error) {
	if s.open != nil && s.open.ID == sessionID {
		return *s.open, nil
	}
	return model.CheckoutSession{}, repository.ErrNotFound
}

func (s *authSessionsStub) FindByIDForUpdate(ctx context.Context, sessionID string) (model.CheckoutSession, error) {
	return s.FindByID(ctx, sessionID)
}

func (s *authSessionsStub) FindOpenByUserID(ctx context.Context, userID int64) (model.CheckoutSession, bool, error) {
	if s.open != nil && s.open.UserID == userID && !s.open.State.Terminal() {
		return *s.open, true, nil
	}
	return model.CheckoutSession{}, false, nil
}

func (s *authSessionsStub) Save(ctx context.Context, sess model.CheckoutSession) error {
	if s.open != nil && s.open.ID == sess.ID {
		*s.open = sess
	}
	s.saved = append(s.saved, sess)
	return nil
}

func (s *authSessionsStub) ReplaceItems(ctx context.Context, sessionID string, items []model.CheckoutItem) error {
	return nil
}

func (s *authSessionsStub) ListItems(ctx context.Context, sessionID string) ([]model.CheckoutItem, error) {
	return []model.CheckoutItem{}, nil
}

func newAuthUC(users *AuthUserRepoMock, rts *AuthRTRepoMock) *usecase.AuthUsecase {
	return newAuthUCWithSessions(users, rts, &authSessionsStub{})
}

func newAuthUCWithSessions(users *AuthUserRepoMock, rts *AuthRTRepoMock, sessions *authSessionsStub) *usecase.AuthUsecase {
	cfg := config.Config{JWTSecret: "test-secret"}
	return usecase.NewAuthUsecase(cfg, users, rts, sessions, passthroughAuthValidator{})
}

func TestAuthUsecase_Register_HashesPassword(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	uc := newAuthUC(users, new(AuthRTRepoMock))

	users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		//平文がそのまま入っていないこと
		if u.PasswordHash == "password123" {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
	})).Return(nil)

	res, err := uc.Register(ctx, usecase.AuthRegisterRequest{
		Email: "a@example.com", Name: "A", Password: "password123",
	})
	assert.NoError(t, err)
	assert.Equal(t, "a@example.com", res.User.Email)
	users.AssertExpectations(t)
}

func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	uc := newAuthUC(users, new(AuthRTRepoMock))

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpass"), bcrypt.DefaultCost)
	users.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: string(hash), IsActive: true,
	}, nil)

	_, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "wrong"}, "ua")
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestAuthUsecase_Login_InactiveUserForbidden(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	uc := newAuthUC(users, new(AuthRTRepoMock))

	users.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", IsActive: false,
	}, nil)

	_, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "x"}, "ua")
	assert.ErrorIs(t, err, usecase.ErrForbidden)
}

func TestAuthUsecase_Login_Success_StoresRefreshHash(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	uc := newAuthUC(users, rts)

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpass"), bcrypt.DefaultCost)
	user := &model.User{ID: 1, Email: "a@example.com", PasswordHash: string(hash), Role: model.RoleUser, IsActive: true}
	users.On("FindByEmail", mock.Anything, "a@example.com").Return(user, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	var storedHash string
	rts.On("Create", mock.Anything, mock.MatchedBy(func(rt *model.RefreshToken) bool {
		storedHash = rt.TokenHash
		return rt.UserID == 1 && rt.TokenHash != ""
	})).Return(nil)

	res, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "rightpass"}, "ua")
	assert.NoError(t, err)
	assert.NotEmpty(t, res.Body.Token.AccessToken)
	assert.NotEmpty(t, res.RefreshTokenPlain)
	//DBに平文を置かない
	assert.NotEqual(t, res.RefreshTokenPlain, storedHash)
}

func TestAuthUsecase_Refresh_ReplayDeletesAll(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	uc := newAuthUC(users, rts)

	used := time.Now().Add(-time.Minute)
	rts.On("FindByTokenHash", mock.Anything, mock.Anything).Return(&model.RefreshToken{
		ID: "rt-1", UserID: 1, UsedAt: &used, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	rts.On("DeleteAllByUserID", mock.Anything, int64(1)).Return(nil)

	_, err := uc.Refresh(ctx, "some-plain-token", "ua")
	assert.ErrorIs(t, err, usecase.ErrSecurityIncident)
	rts.AssertCalled(t, "DeleteAllByUserID", mock.Anything, int64(1))
}

func TestAuthUsecase_Login_SurfacesOpenCheckout(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	sessions := &authSessionsStub{
		open: &model.CheckoutSession{ID: "sess-1", UserID: 1, State: model.CheckoutStateMethodSelect},
	}
	uc := newAuthUCWithSessions(users, rts, sessions)

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpass"), bcrypt.DefaultCost)
	users.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: string(hash), Role: model.RoleUser, IsActive: true,
	}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	rts.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "rightpass"}, "ua")
	assert.NoError(t, err)
	//やりかけのセッションIDが返る
	assert.Equal(t, "sess-1", res.Body.OpenCheckoutID)
}

func TestAuthUsecase_Login_NoOpenCheckout_OmitsID(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	uc := newAuthUC(users, rts)

	hash, _ := bcrypt.GenerateFromPassword([]byte("rightpass"), bcrypt.DefaultCost)
	users.On("FindByEmail", mock.Anything, "a@example.com").Return(&model.User{
		ID: 1, Email: "a@example.com", PasswordHash: string(hash), Role: model.RoleUser, IsActive: true,
	}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	rts.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "rightpass"}, "ua")
	assert.NoError(t, err)
	assert.Empty(t, res.Body.OpenCheckoutID)
}

func TestAuthUsecase_ForceLogout_CancelsOpenCheckout(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	sessions := &authSessionsStub{
		open: &model.CheckoutSession{ID: "sess-2", UserID: 7, State: model.CheckoutStateExecuting, AttemptSeq: 3},
	}
	uc := newAuthUCWithSessions(users, rts, sessions)

	users.On("IncrementTokenVersion", mock.Anything, int64(7)).Return(nil)
	rts.On("DeleteAllByUserID", mock.Anything, int64(7)).Return(nil)
	users.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7, TokenVersion: 4}, nil)

	res, err := uc.ForceLogout(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, 4, res.NewTokenVersion)

	//実行中だったセッションはキャンセルされ、attempt_seqが進んで古い決済結果が無効になる
	assert.Len(t, sessions.saved, 1)
	assert.Equal(t, model.CheckoutStateCancelled, sessions.saved[0].State)
	assert.Equal(t, int64(4), sessions.saved[0].AttemptSeq)
}

func TestAuthUsecase_ForceLogout_BumpsVersionAndDeletesTokens(t *testing.T) {
	ctx := context.Background()
	users := new(AuthUserRepoMock)
	rts := new(AuthRTRepoMock)
	uc := newAuthUC(users, rts)

	users.On("IncrementTokenVersion", mock.Anything, int64(7)).Return(nil)
	rts.On("DeleteAllByUserID", mock.Anything, int64(7)).Return(nil)
	users.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7, TokenVersion: 3}, nil)

	res, err := uc.ForceLogout(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), res.UserID)
	assert.Equal(t, 3, res.NewTokenVersion)
	users.AssertExpectations(t)
	rts.AssertExpectations(t)
}
