// Package api implements the REST calls made before a stream connection
// opens: resolving a room id to its canonical identity and fetching the
// handshake token plus candidate server list.
//
// Request signing and cookie extraction are external collaborators,
// injected as the Signer and CookieProvider interfaces.
package api
