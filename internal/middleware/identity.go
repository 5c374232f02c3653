package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// 身份由前置网关注入
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserAdmin = "X-User-Admin"

	contextUserID  = "identity.userId"
	contextIsAdmin = "identity.isAdmin"
)

// Identity 读取调用方身份，缺少用户 ID 时返回 401
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUserID + " header"})
			return
		}
		admin, _ := strconv.ParseBool(c.GetHeader(HeaderUserAdmin))

		c.Set(contextUserID, userID)
		c.Set(contextIsAdmin, admin)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(contextIsAdmin)
}
