package sandbox_test

import (
	"blindbox-draw/config"
	"blindbox-draw/internal/api"
	"blindbox-draw/internal/catalog"
	"blindbox-draw/internal/flow"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/sandbox"
	"blindbox-draw/internal/session"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type staticToken string

func (s staticToken) Token() (string, error) {
	return string(s), nil
}

func startSandbox(t *testing.T) (*httptest.Server, *sandbox.Components) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	components := sandbox.MemoryComponents()
	cfg := config.SandboxConfig{Backend: sandbox.BackendMemory, Tokens: []string{testToken}, Seed: true}

	server, err := sandbox.NewWithComponents(ctx, cfg, components, nil)
	require.NoError(t, err)
	require.NoError(t, server.StartWorker(ctx))

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		server.Close()
	})
	return ts, components
}

func newClient(t *testing.T, baseURL string, tokens api.TokenSource) api.Client {
	t.Helper()
	client, err := api.NewClient(baseURL, 2*time.Second, tokens)
	require.NoError(t, err)
	return client
}

func TestSandbox_Ping(t *testing.T) {
	ts, _ := startSandbox(t)
	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSandbox_ClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts, components := startSandbox(t)
	client := newClient(t, ts.URL, staticToken(testToken))

	t.Run("Success - list stock boxes", func(t *testing.T) {
		boxes, err := client.ListStockBoxes(ctx, "1")
		require.NoError(t, err)
		require.Len(t, boxes, 3)
		assert.Equal(t, model.RemainingCount{Count: 4, Known: true}, boxes[0].Remaining())
		assert.Equal(t, model.RemainingCount{Count: 0, Known: true}, boxes[2].Remaining())
	})

	t.Run("Success - price and detail", func(t *testing.T) {
		quote, err := client.GetPriceQuote(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "47.20", quote.ActualPrice(2).StringFixed(2))

		detail, err := client.GetSeriesDetail(ctx, "1")
		require.NoError(t, err)
		assert.Len(t, detail.Styles, 5)
	})

	t.Run("Success - purchase and replay", func(t *testing.T) {
		first, err := client.PurchaseStockBox(ctx, "102", "key-1")
		require.NoError(t, err)
		assert.Equal(t, model.ID("13"), first.StyleID)

		again, err := client.PurchaseStockBox(ctx, "102", "key-1")
		require.NoError(t, err)
		assert.Equal(t, first.DrawID, again.DrawID)

		// worker 非同步寫入售出紀錄
		assert.Eventually(t, func() bool {
			sales, err := components.Sales.ListByStockID(ctx, "102")
			return err == nil && len(sales) == 1
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("Failed - sold out", func(t *testing.T) {
		_, err := client.PurchaseStockBox(ctx, "103", "key-2")
		assert.ErrorIs(t, err, apperrors.ErrSoldOut)
	})

	t.Run("Failed - unknown token", func(t *testing.T) {
		other := newClient(t, ts.URL, staticToken("other"))
		_, err := other.ListStockBoxes(ctx, "1")
		assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
	})
}

func TestSandbox_PurchaseFlow(t *testing.T) {
	ts, _ := startSandbox(t)

	guard := session.NewGuard(session.NewMemoryStore(testToken))
	require.NoError(t, guard.Init(context.Background()))
	client := newClient(t, ts.URL, guard)

	ctrl := flow.NewController("1", client,
		catalog.NewStockCatalog(client, guard),
		pricing.NewSeriesPricingView(client, 2),
		guard,
		flow.WithConfirmation(true),
	)
	views, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, ctrl.Run(ctx))
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor := func(cond func(flow.View) bool) flow.View {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case v := <-views:
				if cond(v) {
					return v
				}
			case <-timeout:
				t.Fatal("timed out waiting for view")
				return flow.View{}
			}
		}
	}

	v := waitFor(func(v flow.View) bool { return v.HasBox && v.Price.Available && v.Series != nil })
	assert.Equal(t, model.ID("101"), v.Box.ID)
	assert.Equal(t, "47.20", v.Price.ActualPrice)

	require.True(t, ctrl.Send(flow.SlotSelected{Index: 2}))
	waitFor(func(v flow.View) bool { return v.Phase == model.PhaseSelecting })

	require.True(t, ctrl.Send(flow.DrawRequested{}))
	v = waitFor(func(v flow.View) bool { return v.Phase == model.PhaseAwaitingConfirmation })
	assert.Contains(t, v.ConfirmationText(), "47.20")

	require.True(t, ctrl.Send(flow.Confirmed{}))
	v = waitFor(func(v flow.View) bool { return v.Phase == model.PhaseResultShown && v.Remaining.Count == 3 })
	require.NotNil(t, v.Result)
	assert.Equal(t, "Deer", v.StyleName(v.Result.StyleID))

	require.True(t, ctrl.Send(flow.Dismissed{}))
	v = waitFor(func(v flow.View) bool { return v.Phase == model.PhaseIdle })
	assert.Nil(t, v.Result)
	assert.Len(t, v.History, 1)
}
