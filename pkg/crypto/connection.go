package crypto

import (
	"fmt"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// DecryptConnection returns a copy of conn with every encrypted field decrypted.
// A nil encryptor is only acceptable when no field is encrypted.
func DecryptConnection(e *CredentialEncryptor, conn models.ConnectionConfig) (models.ConnectionConfig, error) {
	out := conn.Clone()
	for key, v := range out.Fields {
		s, ok := v.(string)
		if !ok || !IsEncrypted(s) {
			continue
		}
		if e == nil {
			return conn, fmt.Errorf("connection %q field %q is encrypted but no credentials key is configured: %w",
				conn.ID, key, apperrors.ErrCredentialsKeyMismatch)
		}
		plain, err := e.Decrypt(s)
		if err != nil {
			return conn, fmt.Errorf("connection %q field %q: %w: %w", conn.ID, key, apperrors.ErrCredentialsKeyMismatch, err)
		}
		out.Fields[key] = plain
	}
	return out, nil
}
