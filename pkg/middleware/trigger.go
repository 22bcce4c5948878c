package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// triggerIssuer はテスト通知トリガー用トークンの発行者。
const triggerIssuer = "pushnot"

// triggerAudience はテスト通知トリガー用トークンの対象。
const triggerAudience = "push:sendTest"

// contextKeyOperator はTriggerAuthが検証したトークンの運用者名を格納するキー。
const contextKeyOperator = "trigger_operator"

// ErrMissingToken はAuthorizationヘッダーが無い場合のエラー。
var ErrMissingToken = errors.New("Authorizationヘッダーが必要です")

// ErrInvalidToken はトークンの形式・署名・有効期限のいずれかが不正な場合のエラー。
var ErrInvalidToken = errors.New("トークンが無効です")

// TriggerClaims はテスト通知トリガー用トークンのクレーム。
type TriggerClaims struct {
	jwt.RegisteredClaims
	// Operator はトークンを発行した運用者の識別子。ログ出力にのみ使用する。
	Operator string `json:"operator"`
}

// GenerateTriggerToken はsendTestを呼び出すためのHS256トークンを生成する。
// pushctl が PUSH_TRIGGER_SECRET を使って呼び出す。
func GenerateTriggerToken(secret, operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TriggerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    triggerIssuer,
			Audience:  jwt.ClaimStrings{triggerAudience},
		},
		Operator: operator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トリガートークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyTriggerToken はAuthorizationヘッダーの値を検証し、クレームを返す。
// secretが空の場合は呼び出し側で検証自体を省略すること。
func VerifyTriggerToken(secret, authHeader string) (*TriggerClaims, error) {
	if authHeader == "" {
		return nil, ErrMissingToken
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return nil, ErrInvalidToken
	}

	claims := &TriggerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(triggerIssuer),
		jwt.WithAudience(triggerAudience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TriggerAuth はテスト通知トリガー用トークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに運用者名を設定する。secretが空の場合は検証しない。
func TriggerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			return
		}
		claims, err := VerifyTriggerToken(secret, c.GetHeader("Authorization"))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(contextKeyOperator, claims.Operator)
	}
}

// TriggerOperator はTriggerAuthが設定した運用者名を返す。
func TriggerOperator(c *gin.Context) string {
	return c.GetString(contextKeyOperator)
}
