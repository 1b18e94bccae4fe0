package controllers_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/calderonlabs/tienda-backend/api/routes"
	"github.com/calderonlabs/tienda-backend/internal/cart"
	"github.com/calderonlabs/tienda-backend/internal/catalog"
	"github.com/calderonlabs/tienda-backend/pkg/config"
	"github.com/calderonlabs/tienda-backend/pkg/db"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
)

type testEnv struct {
	conn   *gorm.DB
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Conversation{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn), db.FromConn(conn), catalogRepo)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	handler := routes.NewRouter(routes.Deps{
		Config:  &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:  logg,
		Catalog: catalogSvc,
		Cart:    cartSvc,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testEnv{conn: conn, server: server}
}

func (e *testEnv) request(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(raw)
}
