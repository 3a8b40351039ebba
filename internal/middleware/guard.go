package middleware

import "github.com/gin-gonic/gin"

// Guard builds the handler chains modules put in front of protected routes.
// A nil *Guard protects nothing, which is how auth is switched off.
type Guard struct {
	authn gin.HandlerFunc
	authz *Authorizer
}

// NewGuard creates a Guard from an authentication middleware and an
// Authorizer. authz may be nil when only authentication is wanted.
func NewGuard(authn gin.HandlerFunc, authz *Authorizer) *Guard {
	return &Guard{authn: authn, authz: authz}
}

// Authenticated returns the chain that requires a signed-in user.
func (g *Guard) Authenticated() gin.HandlersChain {
	if g == nil {
		return nil
	}
	return gin.HandlersChain{g.authn}
}

// Require returns the chain that requires a signed-in user holding code.
func (g *Guard) Require(code string) gin.HandlersChain {
	if g == nil {
		return nil
	}
	if g.authz == nil {
		return g.Authenticated()
	}
	return gin.HandlersChain{g.authn, g.authz.Require(code)}
}

// Authorizer returns the Authorizer, or nil.
func (g *Guard) Authorizer() *Authorizer {
	if g == nil {
		return nil
	}
	return g.authz
}

// Chain appends handlers to guards in a fresh slice.
func Chain(guards gin.HandlersChain, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+len(handlers))
	out = append(out, guards...)
	return append(out, handlers...)
}
