package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"PulseMessenger/server/internal/crypto"
	"PulseMessenger/server/internal/models"
	"PulseMessenger/server/internal/storage"
	"PulseMessenger/server/internal/utils"
)

// EmailSender delivers account mail. Failures are logged, never surfaced: a
// broken mail relay must not block registration.
type EmailSender interface {
	SendVerificationEmail(to, username, code string) error
}

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	VerifyRegistration(ctx context.Context, email, code string) error
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetProfile(ctx context.Context, userID int) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int, aboutMe, profilePicture *string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, requesterID int) ([]models.User, error)
}

type userService struct {
	store  storage.Storage
	cipher *crypto.Cipher
	mailer EmailSender
	clock  clockwork.Clock
}

func NewUserService(store storage.Storage, cipher *crypto.Cipher, mailer EmailSender, clock clockwork.Clock) UserService {
	return &userService{store: store, cipher: cipher, mailer: mailer, clock: clock}
}

func (us *userService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, models.E(models.KindValidationFailed, "username, email and password are required")
	}

	exists, err := us.store.UserExists(ctx, username, email)
	if err != nil {
		return nil, wrapInternal(err)
	}
	if exists {
		return nil, models.E(models.KindValidationFailed, "a user with this email or username already exists")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, wrapInternal(err)
	}

	code, err := verificationCode()
	if err != nil {
		return nil, wrapInternal(err)
	}

	user := &models.User{
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		VerificationCode: &code,
	}
	id, err := us.store.CreateUser(ctx, user)
	if err != nil {
		return nil, wrapInternal(err)
	}
	user.ID = id
	log.Printf("User %d registered (%s)", id, username)

	if err := us.mailer.SendVerificationEmail(email, username, code); err != nil {
		log.Printf("Error sending verification email to %s: %v", email, err)
	}
	return user, nil
}

func (us *userService) VerifyRegistration(ctx context.Context, email, code string) error {
	user, err := us.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.VerificationCode == nil || *user.VerificationCode != code {
		return models.E(models.KindValidationFailed, "invalid verification code")
	}

	user.IsVerified = true
	user.VerificationCode = nil
	if err := us.store.UpdateUser(ctx, user); err != nil {
		return wrapInternal(err)
	}
	log.Printf("User %d verified", user.ID)
	return nil
}

func (us *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := us.store.GetUserByEmail(ctx, email)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return nil, models.E(models.KindUnauthenticated, "invalid email or password")
		}
		return nil, wrapInternal(err)
	}
	if !user.IsVerified {
		return nil, models.E(models.KindUnauthenticated, "please verify your email first")
	}
	if err := utils.CheckPasswordHash(password, user.PasswordHash); err != nil {
		return nil, models.E(models.KindUnauthenticated, "invalid email or password")
	}
	return us.decryptProfile(user), nil
}

func (us *userService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	if newPassword == "" {
		return models.E(models.KindValidationFailed, "new password is required")
	}

	user, err := us.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := utils.CheckPasswordHash(oldPassword, user.PasswordHash); err != nil {
		return models.E(models.KindUnauthenticated, "invalid old password")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return wrapInternal(err)
	}
	user.PasswordHash = hash
	return wrapInternal(us.store.UpdateUser(ctx, user))
}

func (us *userService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := us.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", wrapInternal(err)
	}
	token := hex.EncodeToString(raw)
	expiry := us.clock.Now().Add(time.Hour)

	user.ResetToken = &token
	user.ResetTokenExpiry = &expiry
	if err := us.store.UpdateUser(ctx, user); err != nil {
		return "", wrapInternal(err)
	}
	log.Printf("Reset token issued for user %d", user.ID)
	return token, nil
}

func (us *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return models.E(models.KindValidationFailed, "token and new password are required")
	}

	user, err := us.store.GetUserByResetToken(ctx, token)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return models.E(models.KindValidationFailed, "invalid or expired token")
		}
		return wrapInternal(err)
	}
	if user.ResetTokenExpiry == nil || us.clock.Now().After(*user.ResetTokenExpiry) {
		return models.E(models.KindValidationFailed, "invalid or expired token")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return wrapInternal(err)
	}
	user.PasswordHash = hash
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	return wrapInternal(us.store.UpdateUser(ctx, user))
}

func (us *userService) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	user, err := us.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return us.decryptProfile(user), nil
}

func (us *userService) UpdateProfile(ctx context.Context, userID int, aboutMe, profilePicture *string) (*models.User, error) {
	user, err := us.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if aboutMe != nil {
		sealed, err := us.cipher.Seal(*aboutMe)
		if err != nil {
			return nil, wrapInternal(err)
		}
		user.AboutMe = sealed
	}
	if profilePicture != nil {
		sealed, err := us.cipher.Seal(*profilePicture)
		if err != nil {
			return nil, wrapInternal(err)
		}
		user.ProfilePicture = sealed
	}

	if err := us.store.UpdateUser(ctx, user); err != nil {
		return nil, wrapInternal(err)
	}
	log.Printf("Profile updated for user %d", userID)
	return us.decryptProfile(user), nil
}

func (us *userService) SearchUsers(ctx context.Context, query string, requesterID int) ([]models.User, error) {
	users, err := us.store.SearchUsers(ctx, query, requesterID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	for i := range users {
		users[i].AboutMe = us.cipher.Open(users[i].AboutMe)
		users[i].ProfilePicture = us.cipher.Open(users[i].ProfilePicture)
		users[i].Email = maskEmail(users[i].Email)
	}
	return users, nil
}

func (us *userService) decryptProfile(user *models.User) *models.User {
	user.AboutMe = us.cipher.Open(user.AboutMe)
	user.ProfilePicture = us.cipher.Open(user.ProfilePicture)
	return user
}

// verificationCode returns a 6-digit code for the registration email.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func maskEmail(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 || parts[0] == "" {
		return email
	}
	local := parts[0]
	visible := 1
	if len(local) > 2 {
		visible = len(local) / 2
		if visible > 3 {
			visible = 3
		}
	}
	return local[:visible] + strings.Repeat("*", len(local)-visible) + "@" + parts[1]
}
