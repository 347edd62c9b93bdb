package scan

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/poslane/internal/capture"
	"github.com/angelmondragon/poslane/internal/cartapi"
	"github.com/angelmondragon/poslane/pkg/config"
	"github.com/angelmondragon/poslane/pkg/enums"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScanConfig() config.ScanConfig {
	return config.ScanConfig{
		DuplicateWindow: 2 * time.Second,
		MinGap:          500 * time.Millisecond,
		SettleHold:      300 * time.Millisecond,
	}
}

func testSessionLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newSessionFixture(t *testing.T, api *stubAPI) (*Session, *queueFixture, *capture.FakeProvider) {
	t.Helper()
	fixture := newQueueFixture(t, api)

	provider := &capture.FakeProvider{Devices: []capture.Device{
		{ID: "cam-back", Label: "Back Camera"},
	}}
	debouncer := NewDebouncer(testScanConfig(), nil, fixture.clock.now)

	session, err := NewSession(SessionParams{
		Provider:  provider,
		Debouncer: debouncer,
		Queue:     fixture.queue,
		Logger:    testSessionLogger(),
		Now:       fixture.clock.now,
	})
	require.NoError(t, err)
	return session, fixture, provider
}

func TestSingleShotSessionTearsDownAfterSuccess(t *testing.T) {
	productID := uuid.New()
	api := &stubAPI{lookup: &cartapi.LookupResult{ProductID: productID, BarcodeAvailable: true}}
	session, _, provider := newSessionFixture(t, api)

	require.NoError(t, session.Start(context.Background(), false))

	item, ok, _ := session.HandleDetection(context.Background(), "890123")
	require.True(t, ok)
	assert.Equal(t, "890123", item.Code)

	status := session.Status()
	assert.False(t, status.Armed, "single-shot mode releases the camera on a terminal outcome")
	assert.Equal(t, "Added", status.Message)
	assert.Equal(t, enums.ScanStatusSuccess, status.MessageLevel)

	streams := provider.Streams()
	require.NotEmpty(t, streams)
	assert.True(t, streams[len(streams)-1].Closed())
}

func TestSingleShotSessionTearsDownAfterFailure(t *testing.T) {
	api := &stubAPI{lookupErr: pkgerrors.New(pkgerrors.CodeNotFound, "no product")}
	session, _, _ := newSessionFixture(t, api)

	require.NoError(t, session.Start(context.Background(), false))

	_, ok, _ := session.HandleDetection(context.Background(), "000000")
	require.True(t, ok)

	status := session.Status()
	assert.False(t, status.Armed, "failures release the camera too")
	assert.Equal(t, "Product not found", status.Message)
	assert.Equal(t, enums.ScanStatusError, status.MessageLevel)
}

func TestContinuousSessionStaysArmed(t *testing.T) {
	productID := uuid.New()
	api := &stubAPI{lookup: &cartapi.LookupResult{ProductID: productID, BarcodeAvailable: true}}
	session, fixture, _ := newSessionFixture(t, api)

	require.NoError(t, session.Start(context.Background(), true))

	_, ok, _ := session.HandleDetection(context.Background(), "890123")
	require.True(t, ok)
	assert.True(t, session.Status().Armed)

	fixture.clock.advance(3 * time.Second)
	_, ok, _ = session.HandleDetection(context.Background(), "890124")
	require.True(t, ok)
	assert.True(t, session.Status().Armed)
}

func TestDetectionsRejectedWhenNotArmed(t *testing.T) {
	api := &stubAPI{}
	session, _, _ := newSessionFixture(t, api)

	_, ok, reason := session.HandleDetection(context.Background(), "890123")
	assert.False(t, ok)
	assert.Equal(t, "not armed", reason)
}

func TestUnavailableMessageHoldsLonger(t *testing.T) {
	ref := "INV-77"
	api := &stubAPI{lookup: &cartapi.LookupResult{BarcodeAvailable: false, SoldInvoiceRef: &ref}}
	session, fixture, _ := newSessionFixture(t, api)

	require.NoError(t, session.Start(context.Background(), true))
	_, ok, _ := session.HandleDetection(context.Background(), "890123")
	require.True(t, ok)

	fixture.clock.advance(4 * time.Second)
	status := session.Status()
	assert.Equal(t, "Unit already sold (invoice INV-77)", status.Message, "unavailable outcomes stay visible past the default window")

	fixture.clock.advance(2 * time.Second)
	assert.Empty(t, session.Status().Message)
}

func TestSuccessMessageExpiresQuickly(t *testing.T) {
	productID := uuid.New()
	api := &stubAPI{lookup: &cartapi.LookupResult{ProductID: productID, BarcodeAvailable: true}}
	session, fixture, _ := newSessionFixture(t, api)

	require.NoError(t, session.Start(context.Background(), true))
	_, ok, _ := session.HandleDetection(context.Background(), "890123")
	require.True(t, ok)

	require.Equal(t, "Added", session.Status().Message)
	fixture.clock.advance(2500 * time.Millisecond)
	assert.Empty(t, session.Status().Message)
}
