package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"unholygrail/internal/models"
	"unholygrail/internal/observability"
	"unholygrail/internal/repositories"

	"github.com/sirupsen/logrus"
)

const (
	welcomeSubject = "You created an account on UNHOLYGRAIL."
	recoverSubject = "Your UNHOLYGRAIL password reset request"
)

// AuthOptions holds the read-only settings of an AuthService.
type AuthOptions struct {
	ClientEndpoint string        // Base URL embedded in email links
	MailFrom       string        // Sender address of outgoing mail
	NotifyTimeout  time.Duration // Upper bound for the background welcome email
	// RotateTokenOnReset mints a new token when the password is reset, which
	// invalidates the recovery link that was used.
	RotateTokenOnReset bool
	Now                func() time.Time
	Metrics            *observability.Metrics
}

// AuthService handles signup, signin, password recovery and reset.
type AuthService struct {
	users     repositories.UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	notifier  Notifier
	validator *RequestValidator
	opts      AuthOptions

	pending sync.WaitGroup // Background notifications still in flight
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repositories.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	opts AuthOptions,
) *AuthService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		notifier:  notifier,
		validator: NewRequestValidator(users),
		opts:      opts,
	}
}

// Signup registers a new user and queues a welcome email. The email is best
// effort: a failed send is logged and never fails the signup.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (view *models.UserView, err error) {
	log := logrus.WithFields(logrus.Fields{"operation": "signup", "username": req.Username})
	defer func() { s.opts.Metrics.ObserveFlow("signup", outcome(err)) }()

	if err := s.validator.ValidateSignup(ctx, req); err != nil {
		log.WithError(err).Warn("signup rejected")
		return nil, err
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		log.WithError(err).Error("signup hashing failed")
		return nil, err
	}

	token, err := s.tokens.Issue()
	if err != nil {
		log.WithError(err).Error("signup token issue failed")
		return nil, err
	}

	user := &models.User{
		Username:       req.Username,
		Email:          req.Email,
		PasswordDigest: digest,
		Token:          token,
		LastLogin:      s.opts.Now().UTC(),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		log.WithError(err).Error("signup insert failed")
		return nil, err
	}

	log = log.WithField("user_id", user.ID)
	s.notifyInBackground(log, s.email(user, welcomeSubject, models.TemplateWelcome))
	log.Info("user signed up")

	v := models.Sanitize(*user)
	return &v, nil
}

// Signin verifies credentials and rotates the user's token.
func (s *AuthService) Signin(ctx context.Context, req SigninRequest) (view *models.UserView, err error) {
	log := logrus.WithFields(logrus.Fields{"operation": "signin", "username": req.Username})
	defer func() { s.opts.Metrics.ObserveFlow("signin", outcome(err)) }()

	if err := s.validator.ValidateSignin(req); err != nil {
		log.WithError(err).Warn("signin rejected")
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			log.Warn("signin for unknown username")
			return nil, ErrInvalidCredentials
		}
		log.WithError(err).Error("signin lookup failed")
		return nil, err
	}

	if !s.hasher.Verify(req.Password, user.PasswordDigest) {
		log.WithField("user_id", user.ID).Warn("signin with wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue()
	if err != nil {
		log.WithError(err).Error("signin token issue failed")
		return nil, err
	}
	lastLogin := s.loginTime(user.LastLogin)

	affected, err := s.users.Update(ctx, user.ID, repositories.UserPatch{Token: &token, LastLogin: &lastLogin})
	if err != nil {
		log.WithError(err).Error("signin update failed")
		return nil, err
	}
	if affected == 0 {
		log.WithField("user_id", user.ID).Warn("user removed during signin")
		return nil, ErrInvalidCredentials
	}

	user.Token = token
	user.LastLogin = lastLogin
	log.WithField("user_id", user.ID).Info("user signed in")

	v := models.Sanitize(*user)
	return &v, nil
}

// Recover emails the user a link carrying their current token and returns a
// message safe to show the client. The token is reused, not re-minted.
func (s *AuthService) Recover(ctx context.Context, req RecoverRequest) (msg string, err error) {
	log := logrus.WithFields(logrus.Fields{"operation": "recover", "username": req.Username})
	defer func() { s.opts.Metrics.ObserveFlow("recover", outcome(err)) }()

	if err := s.validator.ValidateRecover(ctx, req); err != nil {
		log.WithError(err).Warn("recover rejected")
		return "", err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		log.WithError(err).Error("recover lookup failed")
		return "", err
	}

	log = log.WithField("user_id", user.ID)
	if err := s.notifier.Send(ctx, s.email(user, recoverSubject, models.TemplateRecover)); err != nil {
		log.WithError(err).Error("recovery email failed")
		return "", &DeliveryError{Template: models.TemplateRecover, Err: err}
	}

	log.Info("recovery email queued")
	return fmt.Sprintf("An email has been sent to the account associated with %s", user.Username), nil
}

// Reset replaces the password of the already authenticated user userID.
func (s *AuthService) Reset(ctx context.Context, userID string, req ResetRequest) (view *models.UserView, err error) {
	log := logrus.WithFields(logrus.Fields{"operation": "reset", "user_id": userID})
	defer func() { s.opts.Metrics.ObserveFlow("reset", outcome(err)) }()

	if userID == "" {
		log.Warn("reset without authenticated user")
		return nil, ErrUnauthenticated
	}
	if err := s.validator.ValidateReset(req); err != nil {
		log.WithError(err).Warn("reset rejected")
		return nil, err
	}

	current, err := s.userByID(ctx, userID)
	if err != nil {
		log.WithError(err).Error("reset lookup failed")
		return nil, err
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		log.WithError(err).Error("reset hashing failed")
		return nil, err
	}
	lastLogin := s.loginTime(current.LastLogin)
	patch := repositories.UserPatch{PasswordDigest: &digest, LastLogin: &lastLogin}

	if s.opts.RotateTokenOnReset {
		token, err := s.tokens.Issue()
		if err != nil {
			log.WithError(err).Error("reset token issue failed")
			return nil, err
		}
		patch.Token = &token
	}

	affected, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		log.WithError(err).Error("reset update failed")
		return nil, err
	}
	if affected == 0 {
		log.Warn("user removed during reset")
		return nil, ErrUnauthenticated
	}

	user, err := s.userByID(ctx, userID)
	if err != nil {
		log.WithError(err).Error("reset re-fetch failed")
		return nil, err
	}
	log.WithField("username", user.Username).Info("password reset")

	v := models.Sanitize(*user)
	return &v, nil
}

// Authenticate resolves a bearer token to the user currently holding it.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.UserView, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.tokens.Check(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := s.users.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		logrus.WithField("operation", "authenticate").WithError(err).Error("token lookup failed")
		return nil, err
	}

	v := models.Sanitize(*user)
	return &v, nil
}

// Wait blocks until background notifications have finished.
func (s *AuthService) Wait() {
	s.pending.Wait()
}

// userByID maps a missing user onto ErrUnauthenticated: the caller's token
// resolved to an identity that no longer exists.
func (s *AuthService) userByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	return user, err
}

func (s *AuthService) notifyInBackground(log *logrus.Entry, msg models.Email) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()

		if err := s.notifier.Send(ctx, msg); err != nil {
			log.WithError(err).WithField("template", msg.Template).Error("welcome email failed")
			return
		}
		log.WithField("template", msg.Template).Info("welcome email queued")
	}()
}

func (s *AuthService) email(user *models.User, subject, template string) models.Email {
	return models.Email{
		To:       user.Email,
		From:     s.opts.MailFrom,
		Subject:  subject,
		Template: template,
		Vars: map[string]string{
			"username":        user.Username,
			"token":           url.QueryEscape(user.Token),
			"client_endpoint": s.opts.ClientEndpoint,
		},
	}
}

// loginTime keeps last_login monotonic even if the wall clock steps back.
func (s *AuthService) loginTime(previous time.Time) time.Time {
	now := s.opts.Now().UTC()
	if now.Before(previous) {
		return previous
	}
	return now
}
