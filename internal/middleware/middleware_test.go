package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/testutil"
	"go.uber.org/zap"
)

func newRouter(userID uint64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("test-secret"))))
	r.Use(ZapLogger(zap.NewNop()), Metrics())
	if userID != 0 {
		r.Use(func(c *gin.Context) {
			c.Set(constants.ContextKeyUserID, userID)
			c.Next()
		})
	}
	return r
}

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	r := newRouter(0)
	r.GET("/api/private", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/private", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestGetUserID_Types(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		in   interface{}
		want uint64
		ok   bool
	}{
		{uint64(3), 3, true},
		{uint(4), 4, true},
		{int64(5), 5, true},
		{6, 6, true},
		{-1, 0, false},
		{"7", 0, false},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(constants.ContextKeyUserID, tc.in)
		got, ok := GetUserID(c)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestRequireTaskAccess(t *testing.T) {
	db := testutil.NewDB(t)
	member := testutil.CreateUser(t, db, "member", models.UserKindInternal)
	outsider := testutil.CreateUser(t, db, "outsider", models.UserKindInternal)
	org := testutil.CreateOrganization(t, db, "acme", member)
	task := testutil.CreateTask(t, db, "Fix printer", org, member, nil, member)
	path := "/api/tasks/" + strconv.FormatUint(task.ID, 10)

	handler := func(c *gin.Context) {
		got, ok := GetTask(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": got.ID})
	}

	r := newRouter(member.ID)
	r.GET("/api/tasks/:id", RequireTaskAccess(), handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = newRouter(outsider.ID)
	r.GET("/api/tasks/:id", RequireTaskAccess(), handler)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
