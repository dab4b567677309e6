package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/repo"
)

const (
	DefaultCodeTTL = 10 * time.Minute

	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeAttempts = 5
)

var (
	ErrCodeNotFound     = errors.New("pairing code not found")
	ErrCodeExpired      = errors.New("pairing code expired")
	ErrPairingNotFound  = errors.New("pairing not found")
	ErrClientIdentity   = errors.New("client identity is required")
	ErrMissingChannelID = errors.New("channel id is required")
)

// PairingService runs the connect flow: a remote client asks for a code, a
// chat user redeems it in a channel.
type PairingService struct {
	repo repo.PairingRepository
	log  *zap.Logger
	ttl  time.Duration

	now     func() time.Time
	newCode func() (string, error)
}

func NewPairingService(r repo.PairingRepository, log *zap.Logger, codeTTL time.Duration) *PairingService {
	if log == nil {
		log = zap.NewNop()
	}
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &PairingService{
		repo:    r,
		log:     log,
		ttl:     codeTTL,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: randomCode,
	}
}

// IssueCode creates a pending pairing for clientIdentity.
func (s *PairingService) IssueCode(ctx context.Context, clientIdentity string) (model.Pairing, error) {
	clientIdentity = strings.TrimSpace(clientIdentity)
	if clientIdentity == "" {
		return model.Pairing{}, ErrClientIdentity
	}

	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return model.Pairing{}, fmt.Errorf("generate pairing code: %w", err)
		}

		p := model.Pairing{
			ID:             uuid.NewString(),
			Code:           code,
			ClientIdentity: clientIdentity,
			Status:         model.PairingPending,
			CreatedAt:      s.now(),
		}
		// a unique violation on code is the only expected failure here
		if lastErr = s.repo.CreatePending(ctx, p); lastErr == nil {
			s.log.Info("pairing code issued", zap.String("pairing_id", p.ID), zap.String("client", clientIdentity))
			return p, nil
		}
	}
	return model.Pairing{}, fmt.Errorf("create pending pairing: %w", lastErr)
}

// Connect redeems code for dest. Codes older than the configured TTL are
// rejected with ErrCodeExpired.
func (s *PairingService) Connect(ctx context.Context, code string, dest model.Destination) (model.Pairing, error) {
	if strings.TrimSpace(dest.ChannelID) == "" {
		return model.Pairing{}, ErrMissingChannelID
	}

	p, err := s.repo.FindPendingByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Pairing{}, ErrCodeNotFound
		}
		return model.Pairing{}, err
	}

	now := s.now()
	if now.Sub(p.CreatedAt) > s.ttl {
		return model.Pairing{}, ErrCodeExpired
	}

	connected, err := s.repo.Connect(ctx, p.ID, dest, now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Pairing{}, ErrCodeNotFound
		}
		return model.Pairing{}, err
	}

	s.log.Info("pairing connected",
		zap.String("pairing_id", connected.ID),
		zap.String("channel_id", dest.ChannelID),
	)
	return connected, nil
}

func (s *PairingService) Disconnect(ctx context.Context, id string) error {
	if err := s.repo.Disconnect(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPairingNotFound
		}
		return err
	}
	s.log.Info("pairing disconnected", zap.String("pairing_id", id))
	return nil
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
