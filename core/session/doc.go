// Package session provides the in-memory session store shared by all
// applications of a server.
//
// Sessions are identified by a random token (BLAKE2b-128 of 16 random
// bytes, uppercase hex) carried in the JSESSIONID cookie. Every request
// resolves a session: unknown or missing tokens create one. A background
// sweep removes sessions idle longer than their interval:
//
//	store := session.New(session.WithTimeout(30), session.WithLogger(log))
//	if err := store.Start(ctx); err != nil {
//		return err
//	}
//	defer store.Stop()
//
//	sess, created, err := store.Resolve(cookieValue)
//	resp.AddCookie(store.Cookie(sess, app.Prefix()))
package session
