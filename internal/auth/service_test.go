package auth

import (
	"encoding/json"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/nexusai/nexus/internal/apperr"
	"github.com/nexusai/nexus/internal/models"
	"github.com/nexusai/nexus/internal/user"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes ---

type fakeRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int]*models.User{}}
}

func (f *fakeRepo) Create(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			// même contrat que la contrainte UNIQUE du store
			return apperr.New(apperr.Conflict, "User already exists")
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	clone := *u
	f.users[u.ID] = &clone
	return nil
}

func (f *fakeRepo) GetByID(id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeRepo) GetByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeRepo) GetByResetToken(token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(time.Now()) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeRepo) GetByVerificationCode(code string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.VerificationCode != nil && *u.VerificationCode == code &&
			u.VerificationExpiresAt != nil && u.VerificationExpiresAt.After(time.Now()) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeRepo) SaveResetToken(id int, token string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	return nil
}

func (f *fakeRepo) UpdatePassword(id int, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.Password = password
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	return nil
}

func (f *fakeRepo) UpdateLastLogin(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.users[id].LastLogin = &now
	return nil
}

func (f *fakeRepo) MarkVerified(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.IsVerified = true
	u.VerificationCode = nil
	u.VerificationExpiresAt = nil
	return nil
}

type recordingSender struct {
	mu           sync.Mutex
	err          error
	verification []string
	welcome      []string
	signout      []string
	resetLinks   []string
	resetSuccess []string
}

func (s *recordingSender) SendVerificationEmail(to, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verification = append(s.verification, code)
	return s.err
}

func (s *recordingSender) SendWelcomeEmail(to, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcome = append(s.welcome, to)
	return s.err
}

func (s *recordingSender) SendSignoutEmail(to, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signout = append(s.signout, to)
	return s.err
}

func (s *recordingSender) SendPasswordResetEmail(to, name, resetLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLinks = append(s.resetLinks, resetLink)
	return s.err
}

func (s *recordingSender) SendResetSuccessEmail(to, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetSuccess = append(s.resetSuccess, to)
	return s.err
}

func (s *recordingSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSender) sentVerification() []string { return s.snapshot(&s.verification) }
func (s *recordingSender) sentWelcome() []string      { return s.snapshot(&s.welcome) }
func (s *recordingSender) sentResetLinks() []string   { return s.snapshot(&s.resetLinks) }
func (s *recordingSender) sentResetSuccess() []string { return s.snapshot(&s.resetSuccess) }

func (s *recordingSender) snapshot(field *[]string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), *field...)
}

// waitForSends attend que les envois partis en arrière-plan soient passés
// par le sender, puis retourne leur contenu
func waitForSends(t *testing.T, sent func() []string, want int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(sent()) == want },
		2*time.Second, 5*time.Millisecond)
	return sent()
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService() (*Service, *fakeRepo, *recordingSender) {
	repo := newFakeRepo()
	sender := &recordingSender{}
	return NewService(repo, sender, "https://app.example.com", discardLogger()), repo, sender
}

func signupTestUser(t *testing.T, s *Service) *models.User {
	t.Helper()
	u, err := s.Signup(SignupRequest{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	return u
}

// --- signup ---

func TestSignup_HashesPassword(t *testing.T) {
	s, repo, sender := newTestService()

	u := signupTestUser(t, s)

	stored, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", stored.Password)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter22")))

	// code de vérification à 6 chiffres, email envoyé en arrière-plan
	codes := waitForSends(t, sender.sentVerification, 1)
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), codes[0])
	require.NotNil(t, stored.VerificationExpiresAt)
}

func TestSignup_MissingFields(t *testing.T) {
	s, _, _ := newTestService()

	cases := []SignupRequest{
		{Email: "a@b.com", Password: "hunter22"},
		{Name: "Alice", Password: "hunter22"},
		{Name: "Alice", Email: "a@b.com"},
	}
	for _, req := range cases {
		_, err := s.Signup(req)
		require.Equal(t, apperr.Validation, apperr.KindOf(err))
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	s, _, _ := newTestService()

	signupTestUser(t, s)
	_, err := s.Signup(SignupRequest{Name: "Bob", Email: "alice@example.com", Password: "password1"})
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

// deux inscriptions concurrentes avec le même email: exactement une réussit
func TestSignup_ConcurrentDuplicate(t *testing.T) {
	s, _, _ := newTestService()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Signup(SignupRequest{Name: "Alice", Email: "race@example.com", Password: "hunter22"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts, successes int
	for err := range errs {
		if err == nil {
			successes++
		} else if apperr.KindOf(err) == apperr.Conflict {
			conflicts++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)
}

// --- signin ---

func TestSignin_UniformError(t *testing.T) {
	s, _, _ := newTestService()
	signupTestUser(t, s)

	_, errUnknown := s.Signin(SigninRequest{Email: "nobody@example.com", Password: "hunter22"})
	_, errWrongPassword := s.Signin(SigninRequest{Email: "alice@example.com", Password: "wrong-password"})

	// email inconnu et mot de passe incorrect: erreur strictement identique
	require.Equal(t, apperr.Authentication, apperr.KindOf(errUnknown))
	require.Equal(t, apperr.Authentication, apperr.KindOf(errWrongPassword))
	require.Equal(t, errUnknown.Error(), errWrongPassword.Error())
}

func TestSignin_Success(t *testing.T) {
	s, repo, _ := newTestService()
	u := signupTestUser(t, s)

	got, err := s.Signin(SigninRequest{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	stored, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
}

// --- forgot password ---

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	s, _, sender := newTestService()

	err := s.ForgotPassword("nobody@example.com")
	require.NoError(t, err)
	require.Empty(t, sender.sentResetLinks())
}

func TestForgotPassword_StoresTokenAndSendsLink(t *testing.T) {
	s, repo, sender := newTestService()
	u := signupTestUser(t, s)

	err := s.ForgotPassword("alice@example.com")
	require.NoError(t, err)

	stored, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	// 20 octets aléatoires en hexadécimal
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), *stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
	require.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetTokenExpiry, time.Minute)

	links := waitForSends(t, sender.sentResetLinks, 1)
	require.Equal(t, "https://app.example.com/reset-password/"+*stored.ResetToken, links[0])
}

func TestForgotPassword_NewTokenOverwritesOld(t *testing.T) {
	s, repo, _ := newTestService()
	u := signupTestUser(t, s)

	require.NoError(t, s.ForgotPassword("alice@example.com"))
	stored, _ := repo.GetByID(u.ID)
	first := *stored.ResetToken

	require.NoError(t, s.ForgotPassword("alice@example.com"))
	stored, _ = repo.GetByID(u.ID)
	require.NotEqual(t, first, *stored.ResetToken)

	// l'ancien token n'autorise plus de reset
	err := s.ResetPassword(first, ResetPasswordRequest{Password: "newpassword1", ConfirmPassword: "newpassword1"})
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

func TestForgotPassword_SenderFailureStaysGeneric(t *testing.T) {
	s, repo, sender := newTestService()
	u := signupTestUser(t, s)
	sender.setErr(io.ErrUnexpectedEOF)

	err := s.ForgotPassword("alice@example.com")
	require.NoError(t, err)

	// le token est quand même enregistré
	stored, _ := repo.GetByID(u.ID)
	require.NotNil(t, stored.ResetToken)
}

// slowSender simule un serveur SMTP lent
type slowSender struct {
	recordingSender
	delay time.Duration
}

func (s *slowSender) SendPasswordResetEmail(to, name, resetLink string) error {
	time.Sleep(s.delay)
	return s.recordingSender.SendPasswordResetEmail(to, name, resetLink)
}

// la réponse ne doit jamais attendre le round-trip SMTP
func TestForgotPassword_SlowSenderDoesNotBlock(t *testing.T) {
	repo := newFakeRepo()
	sender := &slowSender{delay: 2 * time.Second}
	s := NewService(repo, sender, "https://app.example.com", discardLogger())
	signupTestUser(t, s)

	start := time.Now()
	require.NoError(t, s.ForgotPassword("alice@example.com"))
	require.Less(t, time.Since(start), sender.delay/2)

	// l'envoi part quand même, en arrière-plan
	require.Eventually(t, func() bool { return len(sender.sentResetLinks()) == 1 },
		2*sender.delay, 10*time.Millisecond)
}

// --- reset password ---

func resetTokenFor(t *testing.T, s *Service, repo *fakeRepo, id int) string {
	t.Helper()
	require.NoError(t, s.ForgotPassword("alice@example.com"))
	stored, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	return *stored.ResetToken
}

func TestResetPassword_Validation(t *testing.T) {
	s, repo, _ := newTestService()
	u := signupTestUser(t, s)
	tok := resetTokenFor(t, s, repo, u.ID)

	err := s.ResetPassword(tok, ResetPasswordRequest{Password: "newpassword1", ConfirmPassword: "different1"})
	require.Equal(t, apperr.Validation, apperr.KindOf(err))

	err = s.ResetPassword(tok, ResetPasswordRequest{Password: "short1", ConfirmPassword: "short1"})
	require.Equal(t, apperr.Validation, apperr.KindOf(err))

	err = s.ResetPassword(tok, ResetPasswordRequest{})
	require.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestResetPassword_UnknownToken(t *testing.T) {
	s, _, _ := newTestService()

	err := s.ResetPassword("deadbeef", ResetPasswordRequest{Password: "newpassword1", ConfirmPassword: "newpassword1"})
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	s, repo, _ := newTestService()
	u := signupTestUser(t, s)

	// token expiré: l'expiration est comparée à l'horloge de vérification
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, repo.SaveResetToken(u.ID, "expiredtoken", expired))

	err := s.ResetPassword("expiredtoken", ResetPasswordRequest{Password: "newpassword1", ConfirmPassword: "newpassword1"})
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

func TestResetPassword_SingleUse(t *testing.T) {
	s, repo, sender := newTestService()
	u := signupTestUser(t, s)
	tok := resetTokenFor(t, s, repo, u.ID)

	req := ResetPasswordRequest{Password: "newpassword1", ConfirmPassword: "newpassword1"}
	require.NoError(t, s.ResetPassword(tok, req))

	// le nouveau hash remplace l'ancien
	stored, _ := repo.GetByID(u.ID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("newpassword1")))
	require.Nil(t, stored.ResetToken)
	waitForSends(t, sender.sentResetSuccess, 1)

	// le même token ne doit pas autoriser un second reset
	err := s.ResetPassword(tok, req)
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

// --- verify email ---

func TestVerifyEmail(t *testing.T) {
	s, repo, sender := newTestService()
	u := signupTestUser(t, s)

	code := waitForSends(t, sender.sentVerification, 1)[0]

	require.NoError(t, s.VerifyEmail(code))

	stored, _ := repo.GetByID(u.ID)
	require.True(t, stored.IsVerified)
	require.Nil(t, stored.VerificationCode)
	waitForSends(t, sender.sentWelcome, 1)

	// le code est à usage unique
	err := s.VerifyEmail(code)
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

func TestVerifyEmail_UnknownCode(t *testing.T) {
	s, _, _ := newTestService()

	err := s.VerifyEmail("000000")
	require.Equal(t, apperr.InvalidToken, apperr.KindOf(err))
}

// --- check auth ---

func TestGetUser_Vanished(t *testing.T) {
	s, _, _ := newTestService()

	_, err := s.GetUser(999)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestSanitizedView_NeverExposesSecrets(t *testing.T) {
	s, _, _ := newTestService()
	u := signupTestUser(t, s)

	view, err := json.Marshal(u)
	require.NoError(t, err)
	require.NotContains(t, string(view), "hunter22")
	require.NotContains(t, string(view), "password")
	require.NotContains(t, string(view), "reset_token")
}
