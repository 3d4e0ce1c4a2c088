package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/pkg/objectstore"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
	"github.com/google/uuid"
)

// MaxProfileImageSize bounds uploaded profile images.
const MaxProfileImageSize = 5 << 20

const profileImageType = "image/jpeg"

// UserService covers the account itself: profile reads, profile image, and
// deletion.
type UserService struct {
	Store   store.Store
	Objects objectstore.Store
	Now     func() time.Time
}

// ProfileImageKey is the object key of a user's profile image.
func ProfileImageKey(userID, imageID string) string {
	return fmt.Sprintf("profile-images/%s/%s.jpg", userID, imageID)
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// DeleteAccount removes the user and, through the schema cascade, every
// refresh token. The profile image is removed afterwards on a best-effort
// basis; an orphaned object is logged, not returned.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	l := slogx.FromContext(ctx)

	var imageID *string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		imageID = u.ImageID
		return tx.Users().DeleteUser(ctx, userID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if imageID != nil {
		key := ProfileImageKey(userID, *imageID)
		if err := s.Objects.Delete(ctx, key); err != nil {
			l.Warn("orphaned profile image", "key", key, "err", err)
		}
	}

	l.Info("account deleted", "user_id", userID)
	return nil
}

// SetProfileImage stores a JPEG and points the user at it. The previous
// image, if any, is removed after the switch.
func (s *UserService) SetProfileImage(ctx context.Context, userID string, data []byte) error {
	l := slogx.FromContext(ctx)

	if len(data) == 0 {
		return &ValidationError{Field: "image", Reason: "must not be empty"}
	}
	if len(data) > MaxProfileImageSize {
		return &ValidationError{Field: "image", Reason: "exceeds 5 MiB"}
	}
	if http.DetectContentType(data) != profileImageType {
		return &ValidationError{Field: "image", Reason: "must be a JPEG"}
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	imageID := uuid.NewString()
	key := ProfileImageKey(userID, imageID)
	if err := s.Objects.Put(ctx, key, data, profileImageType); err != nil {
		return fmt.Errorf("upload profile image: %w", err)
	}

	if err := s.Store.Users().UpdateImageID(ctx, userID, &imageID, s.now()); err != nil {
		if delErr := s.Objects.Delete(ctx, key); delErr != nil {
			l.Warn("orphaned profile image", "key", key, "err", delErr)
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("record profile image: %w", err)
	}

	if user.ImageID != nil {
		old := ProfileImageKey(userID, *user.ImageID)
		if err := s.Objects.Delete(ctx, old); err != nil {
			l.Warn("orphaned profile image", "key", old, "err", err)
		}
	}

	l.Info("profile image updated", "user_id", userID, "image_id", imageID)
	return nil
}

// ProfileImage returns the user's current image, or ErrNotFound.
func (s *UserService) ProfileImage(ctx context.Context, userID string) (objectstore.Object, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return objectstore.Object{}, err
	}
	if user.ImageID == nil {
		return objectstore.Object{}, ErrNotFound
	}

	obj, err := s.Objects.Get(ctx, ProfileImageKey(userID, *user.ImageID))
	if errors.Is(err, objectstore.ErrNotFound) {
		return objectstore.Object{}, ErrNotFound
	}
	if err != nil {
		return objectstore.Object{}, fmt.Errorf("download profile image: %w", err)
	}
	return obj, nil
}
