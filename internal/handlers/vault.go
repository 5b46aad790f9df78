package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/services"
	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// VaultHandler serves the vault lock lifecycle: lock, unlock, passphrase
// change, recovery code reset and generation.
type VaultHandler struct {
	vaults   *services.VaultService
	sessions *services.SessionService
	cookies  auth.CookieConfig
	logger   *slog.Logger
}

func NewVaultHandler(vaults *services.VaultService, sessions *services.SessionService, cookies auth.CookieConfig, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vaults:   vaults,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger,
	}
}

// Request DTOs

type LockRequest struct {
	Reason string `json:"reason" validate:"required,oneof=idle backgrounded logout force rotation admin"`
}

type UnlockRequest struct {
	Passphrase string `json:"passphrase" validate:"required,max=256"`
}

type ChangePassphraseRequest struct {
	CurrentPassphrase string `json:"current_passphrase" validate:"max=256"`
	NewPassphrase     string `json:"new_passphrase" validate:"required,min=10,max=256"`
}

type ResetPassphraseRequest struct {
	RecoveryCode  string `json:"code" validate:"required,len=14"`
	NewPassphrase string `json:"new_passphrase" validate:"required,min=10,max=256"`
}

// Response DTOs

// VaultStatusResponse always carries lock_reason and locked_at so an
// unlocked vault reads as explicit nulls.
type VaultStatusResponse struct {
	Locked     bool       `json:"locked"`
	LockReason *string    `json:"lock_reason"`
	LockedAt   *time.Time `json:"locked_at"`
	RotatedAt  *time.Time `json:"rotated_at,omitempty"`
}

type RecoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

func vaultStatus(vault *models.Vault) VaultStatusResponse {
	resp := VaultStatusResponse{
		Locked:    vault.Locked(),
		LockedAt:  vault.LockedAt,
		RotatedAt: vault.RotatedAt,
	}
	if vault.LockReason != nil {
		reason := string(*vault.LockReason)
		resp.LockReason = &reason
	}
	return resp
}

// Status handles GET /api/vault.
func (h *VaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)
	vault, err := h.vaults.Status(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("failed to load vault",
			slog.String("user_id", ac.UserID.String()),
			slog.Any("error", err))
		httpapi.WriteInternalError(w, "Failed to load vault")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, vaultStatus(vault))
}

// Lock handles POST /api/vault/lock.
func (h *VaultHandler) Lock(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)

	var req LockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	device := r.UserAgent()
	vault, err := h.vaults.Lock(r.Context(), ac.UserID, models.LockReason(req.Reason), &device, ac.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			httpapi.WriteForbidden(w, "forbidden: insufficient permissions")
		case errors.Is(err, models.ErrBadRequest):
			httpapi.WriteBadRequest(w, "Invalid lock reason")
		default:
			h.logger.Error("vault lock failed",
				slog.String("user_id", ac.UserID.String()),
				slog.Any("error", err))
			httpapi.WriteInternalError(w, "Failed to lock vault")
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, vaultStatus(vault))
}

// Unlock handles POST /api/vault/unlock. Wrong passphrase and missing vault
// share one generic 401; the reason-specific refusals are distinct because
// they do not leak passphrase validity.
func (h *VaultHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)

	var req UnlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	device := r.UserAgent()
	vault, err := h.vaults.Unlock(r.Context(), ac.UserID, req.Passphrase, &device, ac.SessionIssuedAt, ac.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidPassphrase):
			httpapi.WriteUnauthorized(w, "Invalid passphrase")
		case errors.Is(err, models.ErrFreshAuthRequired):
			httpapi.WriteError(w, http.StatusUnauthorized, "fresh_auth_required",
				"Sign in again to unlock the vault")
		case errors.Is(err, models.ErrElevatedLock):
			httpapi.WriteForbidden(w, "Vault is locked by an administrator")
		default:
			h.logger.Error("vault unlock failed",
				slog.String("user_id", ac.UserID.String()),
				slog.Any("error", err))
			httpapi.WriteInternalError(w, "Failed to unlock vault")
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, vaultStatus(vault))
}

// ChangePassphrase handles POST /api/vault/change-passphrase. Success revokes all
// recovery codes and rotates the session, so a fresh cookie rides along.
func (h *VaultHandler) ChangePassphrase(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)

	var req ChangePassphraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	if err := h.vaults.ChangePassphrase(r.Context(), ac.UserID, req.CurrentPassphrase, req.NewPassphrase); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidPassphrase):
			httpapi.WriteUnauthorized(w, "Invalid passphrase")
		case errors.Is(err, models.ErrBadRequest):
			httpapi.WriteBadRequest(w, "New passphrase does not meet requirements")
		case errors.Is(err, models.ErrNotFound):
			httpapi.WriteNotFound(w, "Vault not found")
		default:
			h.logger.Error("passphrase change failed",
				slog.String("user_id", ac.UserID.String()),
				slog.Any("error", err))
			httpapi.WriteInternalError(w, "Failed to change passphrase")
		}
		return
	}

	if ac.SessionID != nil {
		if session, err := h.sessions.Rotate(r.Context(), *ac.SessionID, ac.UserID); err == nil {
			auth.SetSessionCookie(w, session.Token, h.sessionCookie(session.ExpiresAt))
		} else {
			h.logger.Error("session rotation after passphrase change failed",
				slog.String("user_id", ac.UserID.String()),
				slog.Any("error", err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassphrase handles POST /api/vault/reset-passphrase. Unauthenticated: the
// recovery code is the credential. Invalid format and unknown code return
// the same response at the same timing floor.
func (h *VaultHandler) ResetPassphrase(w http.ResponseWriter, r *http.Request) {
	var req ResetPassphraseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	ip := httpapi.ExtractClientIP(r)
	ua := r.UserAgent()

	if err := h.vaults.ResetWithRecoveryCode(r.Context(), req.RecoveryCode, req.NewPassphrase, &ip, &ua); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRecoveryCode):
			httpapi.WriteUnauthorized(w, "Invalid or already used recovery code")
		case errors.Is(err, models.ErrBadRequest):
			httpapi.WriteBadRequest(w, "New passphrase does not meet requirements")
		default:
			h.logger.Error("recovery reset failed", slog.Any("error", err))
			httpapi.WriteInternalError(w, "Failed to reset passphrase")
		}
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Passphrase reset successfully",
	})
}

// GenerateRecoveryCodes handles POST /api/vault/recovery-codes. The
// plaintext codes appear in this response and nowhere else.
func (h *VaultHandler) GenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)

	codes, err := h.vaults.GenerateRecoveryCodes(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("recovery code generation failed",
			slog.String("user_id", ac.UserID.String()),
			slog.Any("error", err))
		httpapi.WriteInternalError(w, "Failed to generate recovery codes")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, RecoveryCodesResponse{Codes: codes})
}

func (h *VaultHandler) sessionCookie(expiresAt time.Time) auth.CookieConfig {
	cfg := h.cookies
	if ttl := time.Until(expiresAt); ttl > 0 {
		cfg.MaxAge = int(ttl.Seconds())
	}
	return cfg
}
