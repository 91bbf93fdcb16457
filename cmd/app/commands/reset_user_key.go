package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
)

// UserLookup defines the user resolution this command needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*userDomain.User, error)
}

// KeyResetter defines the key rotation this command needs.
type KeyResetter interface {
	Reset(ctx context.Context, userID uuid.UUID, passphrase string) error
}

// RunResetUserKey rotates a user's encryption keypair under a new passphrase.
// Containers sealed with the old keypair become unreadable and are purged,
// together with the job records that referenced them.
func RunResetUserKey(
	ctx context.Context,
	users UserLookup,
	keys KeyResetter,
	logger *slog.Logger,
	w io.Writer,
	username string,
	passphrase string,
) error {
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to look up user %q: %w", username, err)
	}

	logger.Info("resetting user encryption key",
		slog.String("username", username),
		slog.String("user_id", user.ID.String()),
	)

	if err := keys.Reset(ctx, user.ID, passphrase); err != nil {
		return fmt.Errorf("failed to reset encryption key: %w", err)
	}

	fmt.Fprintf(w, "Encryption key reset for user %s; encrypted jobs were purged\n", username)

	logger.Info("user encryption key reset completed", slog.String("username", username))

	return nil
}
