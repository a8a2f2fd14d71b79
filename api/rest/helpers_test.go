package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasuganosora/vkrpg/api/rest"
	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	"github.com/kasuganosora/vkrpg/game/item"
	"github.com/kasuganosora/vkrpg/game/market"
	"github.com/kasuganosora/vkrpg/game/player"
	"github.com/kasuganosora/vkrpg/identity"
	mw "github.com/kasuganosora/vkrpg/middleware"
	"github.com/kasuganosora/vkrpg/scheduler"
	"github.com/kasuganosora/vkrpg/testutil"
)

const testAdminKey = "admin-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	r       *gin.Engine
	db      *gorm.DB
	cache   cache.Cache
	pubsub  cache.PubSub
	players *player.Service
	market  *market.Service
	audit   *audit.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	log := zap.NewNop()

	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	verifier, err := identity.NewVerifier(config.IdentityConfig{
		Mode:               config.IdentityModeBypass,
		FallbackIdentityID: 12345,
	})
	require.NoError(t, err)

	players := player.NewService(db, config.GameConfig{PlayerCacheSize: 100, PlayerCacheTTL: time.Minute}, log)
	inv := item.NewInventoryService(db, log)
	mkt := market.NewService(db, c, ps, config.MarketConfig{
		CommissionRate:  "0.05",
		DefaultPageSize: 50,
		MaxPageSize:     100,
		LockTTL:         5 * time.Second,
	}, log)
	auditSvc := audit.New(db, log, audit.WithFlushInterval(10*time.Millisecond))
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	sched := scheduler.New(log, time.Second)
	t.Cleanup(sched.Stop)
	sched.AddTicker("premium_sweep", time.Hour, func(ctx context.Context) {})

	authH := rest.NewAuthHandler(c, sec, log)
	playerH := rest.NewPlayerHandler(players, auditSvc, log)
	invH := rest.NewInventoryHandler(inv, auditSvc, log)
	marketH := rest.NewMarketHandler(mkt, auditSvc, log)
	adminH := rest.NewAdminHandler(players, ps, sched, auditSvc, log)
	auth := mw.Auth(sec, c, verifier, players, log)

	r := gin.New()
	api := r.Group("/api")
	{
		authG := api.Group("/auth", auth)
		authG.POST("/session", authH.Session)
		authG.POST("/logout", authH.Logout)
		authG.POST("/refresh", authH.Refresh)

		playerG := api.Group("/player", auth)
		playerG.GET("", playerH.Profile)
		playerG.POST("/add-gold", playerH.AddGold())
		playerG.POST("/spend-gold", playerH.SpendGold())
		playerG.POST("/add-crystals", playerH.AddCrystals())
		playerG.POST("/spend-crystals", playerH.SpendCrystals())
		playerG.POST("/buy-skin", playerH.BuySkin)
		playerG.POST("/equip-skin", playerH.EquipSkin)

		invG := api.Group("/inventory", auth)
		invG.GET("", invH.List)
		invG.POST("/add", invH.Add)
		invG.POST("/use/:id", invH.Use)
		invG.POST("/remove/:id", invH.Remove)

		api.GET("/market", marketH.List)
		marketG := api.Group("/market", auth)
		marketG.GET("/my", marketH.Mine)
		marketG.POST("/sell", marketH.Sell)
		marketG.POST("/buy/:id", marketH.Buy)

		adminG := api.Group("/admin", rest.AdminAuth(testAdminKey))
		adminG.GET("/players/:id", adminH.GetPlayer)
		adminG.POST("/players/:id/premium", adminH.GrantPremium)
		adminG.POST("/announce", adminH.Announce)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}
	return &env{r: r, db: db, cache: c, pubsub: ps, players: players, market: mkt, audit: auditSvc}
}

// as returns the launch-params header pair for a bypass-mode user.
func as(vkID int64) []string {
	return []string{mw.VKParamsHeader, "vk_user_id=" + strconv.FormatInt(vkID, 10)}
}

func do(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return do(r, http.MethodPost, path, body, headers...)
}

func get(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	return do(r, http.MethodGet, path, nil, headers...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
