package middleware

import (
	"strings"

	"github.com/francis150/tmpltr/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 上下文键
const (
	ContextUserID    = "user_id"
	ContextAuthToken = "auth_token"
)

// Auth 认证中间件
// 解析 Bearer Token 取出用户标识；令牌本身作为不透明字符串保留在上下文中，
// 供生成任务原样透传给外部生成服务，本服务不做进一步检查
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			common.AbortWithError(c, common.CodeUnauthorized, "未登录，请先登录")
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			common.AbortWithError(c, common.CodeUnauthorized, "登录状态已失效，请重新登录")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			common.AbortWithError(c, common.CodeUnauthorized, "登录状态已失效，请重新登录")
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			common.AbortWithError(c, common.CodeUnauthorized, "登录状态已失效，请重新登录")
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextAuthToken, tokenStr)
		c.Next()
	}
}
