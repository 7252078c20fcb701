package serverutils

import (
	"ai-chatbot-be/pkg/toolctx"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityLocalKey = "identity"

// IdentityMiddleware parses an optional bearer token into a request identity.
// A missing header means anonymous and is allowed through; a present but
// invalid token is rejected so callers cannot downgrade themselves silently.
func IdentityMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if authHeader == "" {
			return ctx.Next()
		}
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Malformed authorization header"))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid claims"))
		}

		identity := &toolctx.Context{}
		if sub, ok := claims["sub"].(string); ok {
			identity.SubjectId = sub
		}
		if name, ok := claims["name"].(string); ok {
			identity.SubjectName = name
		}
		if role, ok := claims["role"].(string); ok {
			identity.Role = role
		}
		if raw, ok := claims["allowed_product_ids"].([]interface{}); ok {
			for _, v := range raw {
				if f, ok := v.(float64); ok {
					identity.AllowedProductIds = append(identity.AllowedProductIds, int(f))
				}
			}
		}

		ctx.Locals(identityLocalKey, identity)
		return ctx.Next()
	}
}

// IdentityFromLocals returns the parsed identity, or nil for anonymous calls.
func IdentityFromLocals(ctx *fiber.Ctx) *toolctx.Context {
	if identity, ok := ctx.Locals(identityLocalKey).(*toolctx.Context); ok {
		return identity
	}
	return nil
}

// RequireRole guards a route group behind an exact role match.
func RequireRole(role string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		identity := IdentityFromLocals(ctx)
		if identity == nil || identity.IsAnonymous() {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
		}
		if identity.Role != role {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(403, "Insufficient role"))
		}
		return ctx.Next()
	}
}
