// internal/scanner/scanner_test.go
package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/snipekit/solana-sniper/internal/market"
)

type fakeProfiles struct {
	profiles []market.Profile
	err      error
}

func (f *fakeProfiles) LatestProfiles(_ context.Context) ([]market.Profile, error) {
	return f.profiles, f.err
}

func drain(out chan string) []string {
	var got []string
	for {
		select {
		case mint := <-out:
			got = append(got, mint)
		default:
			return got
		}
	}
}

func TestScanner_FiltersChainAndSuffix(t *testing.T) {
	source := &fakeProfiles{profiles: []market.Profile{
		{ChainID: "solana", TokenAddress: "AAApump"},
		{ChainID: "ethereum", TokenAddress: "BBBpump"},
		{ChainID: "solana", TokenAddress: "CCCother"},
		{ChainID: "solana", TokenAddress: "DDDpump"},
	}}
	out := make(chan string, 8)
	s := New(source, NewMemorySeen(), out, time.Minute, "pump", zaptest.NewLogger(t))

	s.scan(context.Background())

	assert.Equal(t, []string{"AAApump", "DDDpump"}, drain(out))
}

func TestScanner_DeduplicatesAcrossCycles(t *testing.T) {
	source := &fakeProfiles{profiles: []market.Profile{
		{ChainID: "solana", TokenAddress: "AAApump"},
	}}
	out := make(chan string, 8)
	s := New(source, NewMemorySeen(), out, time.Minute, "pump", zaptest.NewLogger(t))

	s.scan(context.Background())
	s.scan(context.Background())

	assert.Equal(t, []string{"AAApump"}, drain(out))
}

func TestScanner_SourceErrorSkipsCycle(t *testing.T) {
	source := &fakeProfiles{err: errors.New("rate limited")}
	out := make(chan string, 8)
	s := New(source, NewMemorySeen(), out, time.Minute, "pump", zaptest.NewLogger(t))

	s.scan(context.Background())

	assert.Empty(t, drain(out))
}

func TestScanner_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	source := &fakeProfiles{profiles: []market.Profile{
		{ChainID: "solana", TokenAddress: "AAApump"},
		{ChainID: "solana", TokenAddress: "BBBpump"},
		{ChainID: "solana", TokenAddress: "CCCpump"},
	}}
	out := make(chan string, 1)
	seen := NewMemorySeen()
	s := New(source, seen, out, time.Minute, "pump", zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		s.scan(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan blocked on a full candidate queue")
	}

	got := drain(out)
	require.Len(t, got, 1)
	// Dropped candidates stay marked as seen and are not re-emitted.
	wasSeen, err := seen.IsPairSeen(context.Background(), "CCCpump")
	require.NoError(t, err)
	assert.True(t, wasSeen)
}
