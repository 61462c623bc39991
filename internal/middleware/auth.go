package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const operatorIDKey = "operatorID"

// Claims represents the JWT claims issued to back-office operators.
// Tokens are issued by the identity provider; this service only verifies them.
type Claims struct {
	OperatorID uint   `json:"operator_id"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that validates operator JWT tokens
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := ""

		if authHeader == "" {
			// Document links are opened directly by the browser
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "cabeçalho Authorization obrigatório",
					"code":  "UNAUTHORIZED",
				})
				return
			}
		} else {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "formato do cabeçalho Authorization inválido",
					"code":  "UNAUTHORIZED",
				})
				return
			}
			tokenString = parts[1]
		}

		claims, err := ValidateToken(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
				"code":  "UNAUTHORIZED",
			})
			return
		}

		c.Set(operatorIDKey, claims.OperatorID)
		c.Set("claims", claims)

		c.Next()
	}
}

// ValidateToken parses and validates a JWT token string
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("método de assinatura inválido")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token expirado")
		}
		return nil, errors.New("token inválido")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("claims do token inválidas")
	}
	if claims.OperatorID == 0 {
		return nil, errors.New("token sem operador")
	}

	return claims, nil
}

// GetOperatorID extracts the operator ID from the Gin context
func GetOperatorID(c *gin.Context) uint {
	id, exists := c.Get(operatorIDKey)
	if !exists {
		return 0
	}
	operatorID, _ := id.(uint)
	return operatorID
}
