// Package host routes requests to deployed applications.
//
// An Engine holds named virtual hosts and picks one by the Host header,
// falling back to its default host. A Host maps path prefixes to
// applications: Resolve tries the exact path, then its first segment, then
// the root application, so every request lands somewhere.
//
// Hosts deploy explicit contexts from the server descriptor and every
// directory under app_base ("ROOT" becomes "/"). Zip and war bundles in
// app_base are unpacked into a directory of the same name, at startup and
// when dropped in while running. Reloadable applications are redeployed
// through Host.Redeploy when their descriptor directory changes.
package host
