package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"domore/internal/auth"
	"domore/internal/logger"
	"domore/internal/models/task"
	"domore/internal/rowstore"

	"go.uber.org/zap"
)

// ProfileRepository maps external identities to internal profile ids.
type ProfileRepository struct {
	store rowstore.Store
}

func NewProfileRepository(store rowstore.Store) *ProfileRepository {
	return &ProfileRepository{store: store}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns ErrProfileNotFound when no profile row exists.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (task.UserProfile, error) {
	rows, err := r.store.Select(ctx, rowstore.TableProfiles,
		rowstore.Where(rowstore.Eq("email", normalizeEmail(email))), nil)
	if err != nil {
		return task.UserProfile{}, storeError("select profile", err)
	}
	if len(rows) == 0 {
		return task.UserProfile{}, ErrProfileNotFound
	}
	return profileFromRow(rows[0])
}

// Ensure returns the profile for user, creating it when absent.
func (r *ProfileRepository) Ensure(ctx context.Context, user auth.User) (task.UserProfile, error) {
	if strings.TrimSpace(user.Email) == "" {
		return task.UserProfile{}, newValidationError("email", "must not be empty")
	}

	profile, err := r.FindByEmail(ctx, user.Email)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return task.UserProfile{}, err
	}

	row := rowstore.Row{"email": normalizeEmail(user.Email), "username": nil}
	if user.Username != "" {
		row["username"] = user.Username
	}
	rows, insertErr := r.store.Insert(ctx, rowstore.TableProfiles, row)
	if insertErr != nil {
		// A concurrent sign-in may have created it first.
		if profile, err := r.FindByEmail(ctx, user.Email); err == nil {
			return profile, nil
		}
		logger.Error("Repository: failed to create profile", insertErr, zap.String("email", user.Email))
		return task.UserProfile{}, storeError("insert profile", insertErr)
	}
	if len(rows) == 0 {
		return task.UserProfile{}, fmt.Errorf("insert profile: no row returned")
	}

	logger.Info("Repository: profile created", zap.String("email", user.Email))
	return profileFromRow(rows[0])
}

// SignInListener creates the profile of every newly signed-in user. When
// that fails, retry (if set) receives the session id so the provider can
// announce the session again on its next request.
func (r *ProfileRepository) SignInListener(retry func(sessionID string)) auth.Listener {
	return func(ctx context.Context, ev auth.Event) {
		if ev.Type != auth.EventSignedIn {
			return
		}
		if _, err := r.Ensure(ctx, ev.User); err != nil {
			logger.Error("Repository: ensure profile on sign-in failed", err, zap.String("email", ev.User.Email))
			if retry != nil && ev.SessionID != "" {
				retry(ev.SessionID)
			}
		}
	}
}
