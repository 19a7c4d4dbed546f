// Package auth はローカル認証、OAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/repository"
)

// ユーザー名の制約。英数字とアンダースコアのみ、3〜20文字。
const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 6
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ExternalProfile はOAuthプロバイダーから取得した検証済みプロフィールを表す。
type ExternalProfile struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*ExternalProfile, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	sessions  repository.SessionStore
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessions repository.SessionStore,
) *Service {
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		identRepo: identRepo,
		sessions:  sessions,
	}
}

// RegisterLocal はローカル認証ユーザーを登録する。
// username/emailが既に存在する場合はDUPLICATE_IDENTITY、
// 入力が不正な場合は違反フィールドを全件列挙したVALIDATION_FAILEDを返す。
func (s *Service) RegisterLocal(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if violations := validateRegistration(username, email, password); len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, model.NewDuplicateIdentityError("ユーザー名")
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, model.NewDuplicateIdentityError("メールアドレス")
		default:
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// AuthenticateLocal はusernameとpasswordで認証する。
// 認証に失敗した場合はINVALID_CREDENTIALSを返す。
// ユーザーの存在有無が応答時間から漏れないよう、未存在の場合も
// ダミーハッシュに対して照合を行う。
func (s *Service) AuthenticateLocal(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	target := dummyHash
	if user != nil && user.HasLocalCredential() {
		target = user.PasswordHash
	}

	ok, err := VerifyPassword(password, target)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	if user == nil || !user.HasLocalCredential() || !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleGoogleCallback はOAuthコールバックを処理し、ユーザーを特定または作成する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同一トランザクションで
// 自動作成する。同一外部IDの同時初回ログインでユニーク制約違反が起きた場合は、
// 既存レコードを再取得して使用する（重複ユーザーは作成されない）。
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*model.User, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, profile.Provider, profile.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("identity %s references missing user %s", identity.ID, identity.UserID)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", profile.Provider),
		)
		return user, nil
	}

	user, err := s.createUserFromProfile(ctx, profile)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// createUserFromProfile は外部プロフィールから新規ユーザーを作成する。
// usernameはプロフィールから合成し、衝突した場合はランダムサフィックスを
// 付けて再試行する。
func (s *Service) createUserFromProfile(ctx context.Context, profile *ExternalProfile) (*model.User, error) {
	base := synthesizeUsername(profile)

	username := base
	for attempt := 0; attempt < 4; attempt++ {
		now := time.Now()
		newUser := &model.User{
			ID:        uuid.New().String(),
			Username:  username,
			Email:     profile.Email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       profile.Provider,
			ProviderUserID: profile.ProviderUserID,
			CreatedAt:      now,
		}

		err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
		if err == nil {
			slog.Info("new user created",
				slog.String("user_id", newUser.ID),
				slog.String("username", newUser.Username),
				slog.String("provider", profile.Provider),
			)
			return newUser, nil
		}

		if errors.Is(err, repository.ErrDuplicateIdentity) {
			// 同時初回ログインとの競合: 勝った方のレコードを再取得して使用する
			identity, findErr := s.identRepo.FindByProviderAndProviderUserID(ctx, profile.Provider, profile.ProviderUserID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to refetch identity after conflict: %w", findErr)
			}
			if identity == nil {
				return nil, fmt.Errorf("identity conflict but record not found")
			}
			user, findErr := s.userRepo.FindByID(ctx, identity.UserID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to find user after conflict: %w", findErr)
			}
			if user == nil {
				return nil, fmt.Errorf("identity %s references missing user %s", identity.ID, identity.UserID)
			}
			slog.Info("concurrent first login resolved to existing user",
				slog.String("user_id", user.ID),
				slog.String("provider", profile.Provider),
			)
			return user, nil
		}

		if errors.Is(err, repository.ErrDuplicateUsername) || errors.Is(err, repository.ErrDuplicateEmail) {
			suffix, sfxErr := randomSuffix()
			if sfxErr != nil {
				return nil, fmt.Errorf("failed to generate username suffix: %w", sfxErr)
			}
			username = truncateUsername(base, maxUsernameLength-len(suffix)-1) + "_" + suffix
			continue
		}

		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	return nil, fmt.Errorf("failed to create user from external profile: username conflicts exhausted retries")
}

// EstablishSession はユーザーIDを紐付けた新しいセッションを発行する。
// セッション固定攻撃を防ぐため、ログイン時は必ず新しいトークンを払い出し、
// 旧セッションは破棄する。フラッシュと戻り先URLは新セッションへ引き継ぐ。
func (s *Service) EstablishSession(ctx context.Context, prev *model.Session, userID string) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if prev != nil {
		session.Flashes = prev.Flashes
		session.ReturnTo = prev.ReturnTo
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if prev != nil && prev.ID != "" {
		if err := s.sessions.Delete(ctx, prev.ID); err != nil {
			slog.Warn("failed to delete previous session",
				slog.String("error", err.Error()),
			)
		}
	}

	return session, nil
}

// EndSession は認証済みセッションを破棄し、フラッシュを引き継いだ
// 匿名セッションを新たに発行する。
func (s *Service) EndSession(ctx context.Context, prev *model.Session) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        id,
		CreatedAt: time.Now(),
	}
	if prev != nil {
		session.Flashes = prev.Flashes
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if prev != nil && prev.ID != "" {
		if err := s.sessions.Delete(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		slog.Info("user logged out", slog.String("session_id", prev.ID))
	}

	return session, nil
}

// validateRegistration は登録入力を検証し、違反した全フィールドを返す。
func validateRegistration(username, email, password string) []model.FieldViolation {
	var violations []model.FieldViolation

	switch {
	case len(username) < minUsernameLength:
		violations = append(violations, model.FieldViolation{Field: "username", Message: fmt.Sprintf("%d文字以上で入力してください", minUsernameLength)})
	case len(username) > maxUsernameLength:
		violations = append(violations, model.FieldViolation{Field: "username", Message: fmt.Sprintf("%d文字以内で入力してください", maxUsernameLength)})
	case !usernameRegex.MatchString(username):
		violations = append(violations, model.FieldViolation{Field: "username", Message: "英数字とアンダースコアのみ使用できます"})
	}

	if !emailRegex.MatchString(email) {
		violations = append(violations, model.FieldViolation{Field: "email", Message: "メールアドレスの形式が正しくありません"})
	}

	if len(password) < minPasswordLength {
		violations = append(violations, model.FieldViolation{Field: "password", Message: fmt.Sprintf("%d文字以上で入力してください", minPasswordLength)})
	}

	return violations
}

// synthesizeUsername は外部プロフィールからユーザー名を合成する。
// 表示名を優先し、使えない場合はメールアドレスのローカル部を使う。
func synthesizeUsername(profile *ExternalProfile) string {
	candidate := sanitizeUsername(profile.Name)
	if len(candidate) < minUsernameLength {
		local, _, _ := strings.Cut(profile.Email, "@")
		candidate = sanitizeUsername(local)
	}
	if len(candidate) < minUsernameLength {
		candidate = "camper"
	}
	return truncateUsername(candidate, maxUsernameLength)
}

// sanitizeUsername はユーザー名に使えない文字を取り除き、小文字に正規化する。
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncateUsername(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// randomSuffix はユーザー名衝突回避用の短いランダムサフィックスを生成する。
func randomSuffix() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
