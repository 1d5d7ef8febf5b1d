package controllers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
)

func TestHandleGetCredits_BoundToAuthenticatedUser(t *testing.T) {
	repo := ledger.NewMemoryRepository()
	repo.SeedAccount(1, 100)
	repo.SeedAccount(2, 50)
	InitializeCreditsController(ledger.NewService(repo))

	app := newAuthedApp(1, false)
	app.Get("/credits/:userID", HandleGetCredits)

	resp, err := app.Test(httptest.NewRequest("GET", "/credits/2", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/credits/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID  uint  `json:"user_id"`
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint(1), body.UserID)
	assert.Equal(t, int64(100), body.Balance)
}

func TestHandleTopUp_OnlyAdminsActForOthers(t *testing.T) {
	repo := ledger.NewMemoryRepository()
	repo.SeedAccount(1, 0)
	repo.SeedAccount(2, 0)
	svc := ledger.NewService(repo)
	InitializeCreditsController(svc)

	user := newAuthedApp(1, false)
	user.Post("/credits/:userID/topup", HandleTopUp)
	req := httptest.NewRequest("POST", "/credits/2/topup", strings.NewReader(`{"amount":50,"idempotency_key":"top-1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := user.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("POST", "/credits/1/topup", strings.NewReader(`{"amount":50,"idempotency_key":"top-2"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = user.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	admin := newAuthedApp(9, true)
	admin.Post("/credits/:userID/topup", HandleTopUp)
	req = httptest.NewRequest("POST", "/credits/2/topup", strings.NewReader(`{"amount":25,"idempotency_key":"top-3"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = admin.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
