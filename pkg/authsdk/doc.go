// Package authsdk is a Go client for the kanban auth service.
//
// An SDKClient performs the unauthenticated calls (register, login, health)
// and yields a Session. A Session carries the token pair, refreshes the
// access token shortly before it expires, and exposes the calls that need a
// signed-in user.
//
//	c := authsdk.NewSDKClient("http://localhost:8080")
//	s, err := c.Login(ctx, "alice", "correct horse")
//	if err != nil {
//		return err
//	}
//	me, err := s.Me(ctx)
package authsdk
