package health

import (
	"adaptive-agent-go/internal/market"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type panicProbe struct{}

func (panicProbe) Check(context.Context) Status { panic("probe exploded") }

func TestFunc(t *testing.T) {
	ok := Func(func(context.Context) error { return nil }).Check(context.Background())
	assert.True(t, ok.OK)
	assert.Empty(t, ok.Detail)
	assert.False(t, ok.Timestamp.IsZero())

	bad := Func(func(context.Context) error { return errors.New("rpc down") }).Check(context.Background())
	assert.False(t, bad.OK)
	assert.Equal(t, "rpc down", bad.Detail)
}

func TestChecker(t *testing.T) {
	assert.True(t, NewChecker().Check(context.Background()).OK, "no probes means healthy")

	st := NewChecker().
		Add("feed", Static(true, "")).
		Add("rpc", Static(false, "rpc down")).
		Add("boom", panicProbe{}).
		Check(context.Background())
	assert.False(t, st.OK)
	assert.Len(t, st.Checks, 2)
	assert.Equal(t, "rpc down", st.Checks["rpc"])
	assert.Contains(t, st.Checks["boom"], "probe exploded")
	assert.Contains(t, st.Detail, "rpc: rpc down")
}

func TestChecker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := NewChecker().Add("feed", Static(true, "")).Check(ctx)
	assert.False(t, st.OK)
	assert.Contains(t, st.Detail, "canceled")
}

func TestFeedProbe(t *testing.T) {
	feed := market.NewStaticFeed(map[string]float64{"ETH": 2000, "BAD": 0})
	assert.True(t, FeedProbe(feed, "ETH").Check(context.Background()).OK)

	missing := FeedProbe(feed, "DOGE").Check(context.Background())
	assert.False(t, missing.OK)
	assert.Contains(t, missing.Detail, "DOGE")

	assert.False(t, FeedProbe(feed, "BAD").Check(context.Background()).OK)
}
