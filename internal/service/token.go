package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	cfotel "github.com/Strob0t/deepscan-ls/internal/adapter/otel"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/port/analysis"
	"github.com/Strob0t/deepscan-ls/internal/port/cache"
)

// ErrNoToken is returned when token info is requested without a token.
var ErrNoToken = errors.New("no access token configured")

// DefaultTokenInfoTTL is how long a token description is reused.
const DefaultTokenInfoTTL = 5 * time.Minute

// TokenService looks up access-token details and caches them briefly.
type TokenService struct {
	analyzer analysis.Analyzer
	cache    cache.Cache
	ttl      time.Duration
}

// NewTokenService returns a service using c for caching. A nil cache
// disables caching.
func NewTokenService(a analysis.Analyzer, c cache.Cache, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenInfoTTL
	}
	return &TokenService{analyzer: a, cache: c, ttl: ttl}
}

// Info describes the token of ep. Answers carrying a token complaint are
// not cached so that a regenerated token is picked up immediately.
func (s *TokenService) Info(ctx context.Context, ep analysis.Endpoint) (analysis.TokenInfo, error) {
	if strings.TrimSpace(ep.Token) == "" {
		return analysis.TokenInfo{}, ErrNoToken
	}
	key := tokenCacheKey(ep)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var info analysis.TokenInfo
			if err := json.Unmarshal(data, &info); err == nil {
				return info, nil
			}
		}
	}

	ctx, span := cfotel.StartTokenInfoSpan(ctx, ep.ServerURL)
	defer span.End()

	info, err := s.analyzer.TokenInfo(ctx, ep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tokeninfo failed")
		return analysis.TokenInfo{}, fmt.Errorf("token info: %w", err)
	}

	if s.cache != nil && info.Error == "" {
		data, err := json.Marshal(info)
		if err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				slog.DebugContext(ctx, "token info cache set failed", "error", err)
			}
		}
	}
	return info, nil
}

// Invalidate forgets the cached description of ep.
func (s *TokenService) Invalidate(ctx context.Context, ep analysis.Endpoint) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, tokenCacheKey(ep))
}

// Report is the user-facing answer to "what about my token": the matching
// token message when the token is missing or rejected, Describe otherwise.
func (s *TokenService) Report(ctx context.Context, settings inspection.Settings, now time.Time) (string, error) {
	info, err := s.Info(ctx, analysis.EndpointOf(settings))
	if errors.Is(err, ErrNoToken) {
		return TokenMessage(inspection.KindEmptyToken, settings.ServerURL), nil
	}
	if err != nil {
		return "", err
	}
	if info.Error != "" {
		if kind := ClassifyMessage(info.Error); kind.IsToken() {
			return TokenMessage(kind, settings.ServerURL), nil
		}
	}
	return Describe(info, now), nil
}

// tokenCacheKey keeps the raw token out of the cache.
func tokenCacheKey(ep analysis.Endpoint) string {
	sum := sha256.Sum256([]byte(ep.ServerURL + "\x00" + ep.Token))
	return "tokeninfo:" + hex.EncodeToString(sum[:])
}

// Describe renders info for the user, relative to now.
func Describe(info analysis.TokenInfo, now time.Time) string {
	name := info.Name
	if name == "" {
		name = "(unnamed)"
	}
	switch {
	case info.Error != "":
		return fmt.Sprintf("DeepScan access token %s: %s", name, info.Error)
	case info.ExpiresAt.IsZero():
		return fmt.Sprintf("DeepScan access token %s never expires.", name)
	case !info.ExpiresAt.After(now):
		return fmt.Sprintf("DeepScan access token %s expired on %s.", name, info.ExpiresAt.UTC().Format(time.DateOnly))
	default:
		return fmt.Sprintf("DeepScan access token %s expires on %s.", name, info.ExpiresAt.UTC().Format(time.DateOnly))
	}
}
