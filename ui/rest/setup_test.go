package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AzielCF/az-social/automation/application"
	"github.com/AzielCF/az-social/automation/repository"
	"github.com/AzielCF/az-social/core/database"
	"github.com/AzielCF/az-social/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

type apiResponse struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

type testAPI struct {
	app   *fiber.App
	queue *repository.QueueGormRepository
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), false)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	queue := repository.NewQueueGormRepository(db)
	accounts := repository.NewAccountGormRepository(db, nil)
	autoreply := repository.NewAutoReplyGormRepository(db)
	ctx := context.Background()
	require.NoError(t, queue.Init(ctx))
	require.NoError(t, accounts.Init(ctx))
	require.NoError(t, autoreply.Init(ctx))

	svc := application.NewAutomationService(application.ServiceDeps{
		Queue:     queue,
		Accounts:  accounts,
		AutoReply: autoreply,
	})

	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestAutomation(app.Group("/api"), svc)
	return testAPI{app: app, queue: queue}
}

func (a testAPI) do(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()
	return doRequest(t, a.app, method, path, body, nil)
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	if resp.StatusCode != http.StatusNoContent && len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out.Message = string(raw)
	}
	return resp.StatusCode, out
}
