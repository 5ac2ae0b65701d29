package common

// BearerPrefix is the HTTP Authorization scheme for access tokens.
const BearerPrefix = "Bearer "
