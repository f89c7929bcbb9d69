package contextKey

// key is unexported so no other package can collide with these context keys.
type key string

// UserIDKey is the request-context key under which the JWT middleware
// injects the authenticated user's id.
const UserIDKey key = "userID"

// JwtErrorKey is the request-context key under which the JWT middleware
// injects a token validation error for downstream handlers to interpret.
const JwtErrorKey key = "jwtError"
