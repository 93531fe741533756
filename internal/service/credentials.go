package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store"
)

const minPasswordLength = 8

type SignupRequest struct {
	FullName string `json:"fullName" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Title    string `json:"title"`
}

type AdminSignupRequest struct {
	SignupRequest
	AdminKey string `json:"adminKey" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"required,oneof=admin engineer"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type ProfileRequest struct {
	FullName *string `json:"fullName"`
	Title    *string `json:"title"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token    string            `json:"token"`
	User     *models.Principal `json:"user"`
	UserType string            `json:"userType"`
}

// CredentialService manages admin and engineer principals.
type CredentialService struct {
	db       store.Database
	tokens   *auth.TokenManager
	adminKey string
	log      *logger.Logger
	now      func() time.Time
}

func NewCredentialService(db store.Database, tokens *auth.TokenManager, adminKey string, log *logger.Logger) *CredentialService {
	return &CredentialService{db: db, tokens: tokens, adminKey: adminKey, log: log, now: utcNow}
}

func principals(db store.Database, role string) (store.Collection, error) {
	switch role {
	case models.RoleAdmin:
		return db.Collection(store.Admins), nil
	case models.RoleEngineer:
		return db.Collection(store.Engineers), nil
	}
	return nil, apperr.Validation("userType must be admin or engineer")
}

// Register creates an engineer.
func (s *CredentialService) Register(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	return s.register(ctx, models.RoleEngineer, req)
}

// RegisterAdmin creates an admin when the shared signup key matches.
func (s *CredentialService) RegisterAdmin(ctx context.Context, req AdminSignupRequest) (*AuthResult, error) {
	if subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(s.adminKey)) != 1 {
		return nil, apperr.New(apperr.KindForbidden, "Invalid admin key")
	}
	return s.register(ctx, models.RoleAdmin, req.SignupRequest)
}

func (s *CredentialService) register(ctx context.Context, role string, req SignupRequest) (*AuthResult, error) {
	coll, err := principals(s.db, role)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if blank(req.FullName) || email == "" {
		return nil, apperr.Validation("fullName and email are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.New(apperr.KindWeakPassword, "Password must be at least %d characters", minPasswordLength)
	}

	count, err := coll.CountDocuments(ctx, bson.M{"email": store.ExactFold(email), "isActive": true})
	if err != nil {
		return nil, apperr.Internal(err, "Failed to check email")
	}
	if count > 0 {
		return nil, apperr.Duplicate("Email already registered")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to hash password")
	}
	now := s.now()
	p := &models.Principal{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        email,
		PasswordHash: hash,
		Title:        strings.TrimSpace(req.Title),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := coll.InsertOne(ctx, p)
	if err != nil {
		return nil, storeErr(err, "", "Email already registered", "Failed to create account")
	}
	p.ID = id
	p.Role = role
	s.log.Info("principal registered", "role", role, "id", id.Hex())
	return s.issue(p)
}

// Authenticate checks an email/password pair. Every failure is reported as InvalidCredentials.
func (s *CredentialService) Authenticate(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	coll, err := principals(s.db, req.UserType)
	if err != nil {
		return nil, err
	}
	var p models.Principal
	err = coll.FindOne(ctx, bson.M{"email": store.ExactFold(strings.TrimSpace(req.Email)), "isActive": true}, &p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to look up account")
	}
	if !auth.CheckPasswordHash(req.Password, p.PasswordHash) {
		return nil, invalidCredentials()
	}
	p.Role = req.UserType
	return s.issue(&p)
}

func (s *CredentialService) issue(p *models.Principal) (*AuthResult, error) {
	token, err := s.tokens.Generate(p.ID.Hex(), p.Email, p.Role, p.FullName)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to generate token")
	}
	return &AuthResult{Token: token, User: p, UserType: p.Role}, nil
}

func invalidCredentials() error {
	return apperr.New(apperr.KindInvalidCredentials, "Invalid email or password")
}

// Me returns the caller's principal record.
func (s *CredentialService) Me(ctx context.Context, actor Actor) (*models.Principal, error) {
	coll, err := principals(s.db, actor.Role)
	if err != nil {
		return nil, err
	}
	var p models.Principal
	if err := coll.FindOne(ctx, bson.M{"_id": actor.ID}, &p); err != nil {
		return nil, storeErr(err, "User not found", "", "Failed to load user")
	}
	p.Role = actor.Role
	return &p, nil
}

// ChangePassword leaves the stored hash untouched on any failure.
func (s *CredentialService) ChangePassword(ctx context.Context, actor Actor, req ChangePasswordRequest) error {
	p, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, p.PasswordHash) {
		return apperr.New(apperr.KindInvalidCredentials, "Current password is incorrect")
	}
	if len(req.NewPassword) < minPasswordLength {
		return apperr.New(apperr.KindWeakPassword, "New password must be at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal(err, "Failed to hash password")
	}
	coll, _ := principals(s.db, actor.Role)
	matched, err := coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{"password": hash, "updatedAt": s.now()}})
	if err != nil {
		return apperr.Internal(err, "Failed to update password")
	}
	if matched == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (s *CredentialService) UpdateProfile(ctx context.Context, actor Actor, req ProfileRequest) (*models.Principal, error) {
	coll, err := principals(s.db, actor.Role)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": s.now()}
	if req.FullName != nil {
		if blank(*req.FullName) {
			return nil, apperr.Validation("fullName cannot be empty")
		}
		set["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.Title != nil {
		set["title"] = strings.TrimSpace(*req.Title)
	}
	matched, err := coll.UpdateOne(ctx, bson.M{"_id": actor.ID}, bson.M{"$set": set})
	if err != nil {
		return nil, apperr.Internal(err, "Failed to update profile")
	}
	if matched == 0 {
		return nil, apperr.NotFound("User not found")
	}
	return s.Me(ctx, actor)
}

// ListEngineers returns every engineer, active or not, newest first.
func (s *CredentialService) ListEngineers(ctx context.Context) ([]models.Principal, error) {
	var out []models.Principal
	opts := store.FindOptions{Sort: bson.D{{Key: "createdAt", Value: -1}}}
	if err := s.db.Collection(store.Engineers).Find(ctx, bson.M{}, opts, &out); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch engineers")
	}
	for i := range out {
		out[i].Role = models.RoleEngineer
	}
	return out, nil
}

// SetEngineerActive toggles an engineer's ability to log in.
func (s *CredentialService) SetEngineerActive(ctx context.Context, id string, active bool) (*models.Principal, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	coll := s.db.Collection(store.Engineers)
	matched, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"isActive": active, "updatedAt": s.now()}})
	if err != nil {
		return nil, storeErr(err, "Engineer not found", "An active account already uses this email", "Failed to update engineer")
	}
	if matched == 0 {
		return nil, apperr.NotFound("Engineer not found")
	}
	return s.Me(ctx, Actor{ID: oid, Role: models.RoleEngineer})
}

// DeleteEngineer removes the engineer record. Their MPIs are kept.
func (s *CredentialService) DeleteEngineer(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.db.Collection(store.Engineers).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return apperr.Internal(err, "Failed to delete engineer")
	}
	if deleted == 0 {
		return apperr.NotFound("Engineer not found")
	}
	s.log.Info("engineer deleted", "id", oid.Hex())
	return nil
}

// EnsureAdmin creates an admin account if none with that email exists. Used by the seeder.
func (s *CredentialService) EnsureAdmin(ctx context.Context, fullName, email, password string) (bool, error) {
	count, err := s.db.Collection(store.Admins).CountDocuments(ctx, bson.M{"email": store.ExactFold(email)})
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.register(ctx, models.RoleAdmin, SignupRequest{FullName: fullName, Email: email, Password: password}); err != nil {
		return false, err
	}
	return true, nil
}

// ActorFromClaims converts verified token claims into an Actor.
func ActorFromClaims(claims *auth.JWTClaims) (Actor, error) {
	oid, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return Actor{}, apperr.New(apperr.KindInvalidToken, "Invalid token subject")
	}
	return Actor{ID: oid, Role: claims.Role, FullName: claims.FullName, Email: claims.Email}, nil
}
