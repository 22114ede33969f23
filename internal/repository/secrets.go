package repository

import (
	"context"

	"github.com/musiccy/music-svc/internal/domain"
)

// SecretsRepository stores bcrypt hashes of issued tokens and the pending
// OTP token, one row per user.
type SecretsRepository struct {
	db Querier
}

// Get fetches the secret row for a user.
func (r *SecretsRepository) Get(ctx context.Context, uuid string) (domain.Secret, error) {
	var secret domain.Secret
	err := r.db.QueryRow(ctx, `
        SELECT uuid, access_hash, refresh_hash, otp_token, updated_at
        FROM secrets WHERE uuid = $1
    `, uuid).Scan(&secret.UUID, &secret.AccessHash, &secret.RefreshHash, &secret.OTPToken, &secret.UpdatedAt)
	if err != nil {
		return domain.Secret{}, mapError(err)
	}
	return secret, nil
}

// SetOTPToken upserts the pending OTP token for a user.
func (r *SecretsRepository) SetOTPToken(ctx context.Context, uuid, otpToken string) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO secrets (uuid, otp_token) VALUES ($1,$2)
        ON CONFLICT (uuid) DO UPDATE SET otp_token = EXCLUDED.otp_token, updated_at = now()
    `, uuid, otpToken)
	return err
}

// SetTokenHashes upserts hashes of a freshly issued access/refresh pair.
func (r *SecretsRepository) SetTokenHashes(ctx context.Context, uuid, accessHash, refreshHash string) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO secrets (uuid, access_hash, refresh_hash) VALUES ($1,$2,$3)
        ON CONFLICT (uuid) DO UPDATE
        SET access_hash = EXCLUDED.access_hash,
            refresh_hash = EXCLUDED.refresh_hash,
            updated_at = now()
    `, uuid, accessHash, refreshHash)
	return err
}

// SetAccessHash replaces only the access-token hash (refresh flow).
func (r *SecretsRepository) SetAccessHash(ctx context.Context, uuid, accessHash string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE secrets SET access_hash = $2, updated_at = now() WHERE uuid = $1
    `, uuid, accessHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear wipes the stored token hashes (logout).
func (r *SecretsRepository) Clear(ctx context.Context, uuid string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE secrets SET access_hash = '', refresh_hash = '', updated_at = now() WHERE uuid = $1
    `, uuid)
	return err
}
