// internal/scanner/scanner.go
package scanner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snipekit/solana-sniper/internal/market"
)

// ProfileSource yields the latest token profiles across all chains.
type ProfileSource interface {
	LatestProfiles(ctx context.Context) ([]market.Profile, error)
}

// SeenStore deduplicates candidates across cycles and restarts.
type SeenStore interface {
	IsPairSeen(ctx context.Context, pairAddress string) (bool, error)
	MarkPairSeen(ctx context.Context, pairAddress string) error
}

// Scanner is the discovery feed: it drains the latest-profiles endpoint each
// cycle and hands new candidate mints to the engine over a bounded channel.
// The channel replaces the shared mutable candidate list of the earlier
// single-threaded design.
type Scanner struct {
	source   ProfileSource
	seen     SeenStore
	out      chan<- string
	interval time.Duration
	suffix   string
	logger   *zap.Logger
}

func New(source ProfileSource, seen SeenStore, out chan<- string, interval time.Duration, suffix string, logger *zap.Logger) *Scanner {
	return &Scanner{
		source:   source,
		seen:     seen,
		out:      out,
		interval: interval,
		suffix:   suffix,
		logger:   logger.Named("scanner"),
	}
}

// Run scans until the context is cancelled. The first scan happens
// immediately.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("Scanner started",
		zap.Duration("interval", s.interval),
		zap.String("mint_suffix", s.suffix))

	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	profiles, err := s.source.LatestProfiles(ctx)
	if err != nil {
		s.logger.Warn("Profile fetch failed, skipping cycle", zap.Error(err))
		return
	}

	var emitted int
	for _, profile := range profiles {
		if profile.ChainID != "solana" {
			continue
		}
		// Anti-impersonation filter: only mints from the expected issuance
		// platform carry the suffix.
		if !strings.HasSuffix(profile.TokenAddress, s.suffix) {
			continue
		}

		seen, err := s.seen.IsPairSeen(ctx, profile.TokenAddress)
		if err != nil {
			s.logger.Warn("Seen-pair lookup failed", zap.String("mint", profile.TokenAddress), zap.Error(err))
			continue
		}
		if seen {
			continue
		}

		if err := s.seen.MarkPairSeen(ctx, profile.TokenAddress); err != nil {
			s.logger.Warn("Failed to record seen pair", zap.String("mint", profile.TokenAddress), zap.Error(err))
		}

		select {
		case s.out <- profile.TokenAddress:
			emitted++
		case <-ctx.Done():
			return
		default:
			// Engine backlog full; the candidate stays recorded as seen and
			// will not be re-emitted. New listings age out fast anyway.
			s.logger.Warn("Candidate queue full, dropping", zap.String("mint", profile.TokenAddress))
		}
	}

	if emitted > 0 {
		s.logger.Info("Scan cycle complete", zap.Int("new_candidates", emitted), zap.Int("profiles", len(profiles)))
	}
}
