package toolctx

import (
	"context"
	"errors"
)

// Roles recognized by the access checks. An empty role is the anonymous
// default for callers that present no identity.
const (
	RoleAdmin     = "Admin"
	RoleModerator = "Moderator"
	RoleCustomer  = "Customer"
)

// ErrUnauthorized is the hard authorization failure. Tool execution that
// returns an error wrapping it aborts the whole turn; everything else at the
// tool boundary is converted into in-band text.
var ErrUnauthorized = errors.New("yetkisiz erişim")

// Context carries the caller's identity for one request. It is installed on
// the request's context.Context and read back by tool handlers, so it never
// needs to be threaded explicitly through every call. Lifetime is exactly one
// request; it is never persisted.
type Context struct {
	SubjectId         string
	SubjectName       string
	Role              string
	AllowedProductIds []int
}

// IsAnonymous reports whether no identity was supplied.
func (c *Context) IsAnonymous() bool {
	return c == nil || c.SubjectId == ""
}

// CanAccessProduct applies the per-customer allow-list. Admins and moderators
// see everything; a customer with a non-empty allow-list is restricted to it.
func (c *Context) CanAccessProduct(productId int) bool {
	if c == nil || c.Role != RoleCustomer {
		return true
	}
	if len(c.AllowedProductIds) == 0 {
		return true
	}
	for _, id := range c.AllowedProductIds {
		if id == productId {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// With installs the authorization context for the duration of the request
// chain rooted at ctx. Concurrent requests each carry their own value; there
// is no process-wide state to clear.
func With(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// From returns the installed context, or (nil, false) when none is set.
// Absence is a valid state: it means the caller is anonymous.
func From(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || tc == nil {
		return nil, false
	}
	return tc, true
}
